package config

import (
	"encoding/json"
	"os"
	"sync"
)

type Config struct {
	ListenAddr       string `json:"listenAddr"`
	SQLitePath       string `json:"sqlitePath"`
	PublicBaseURL    string `json:"publicBaseURL"`
	GatewayBaseURL   string `json:"gatewayBaseURL"`
	GatewaySecretKey string `json:"gatewaySecretKey"`
	SMTPAddr         string `json:"smtpAddr"`
	SMTPFrom         string `json:"smtpFrom"`
	SMTPUsername     string `json:"smtpUsername"`
	SMTPPassword     string `json:"smtpPassword"`
	SMSAccountID     string `json:"smsAccountID"`
	SMSToken         string `json:"smsToken"`
	SMSFrom          string `json:"smsFrom"`
	SMSBaseURL       string `json:"smsBaseURL"`
	AdminEmail       string `json:"adminEmail"`
	AdminPassword    string `json:"adminPassword"`
}

var (
	cfg Config
	mu  sync.RWMutex
)

const configFilePath = "./medcart_config.json"

func defaults() Config {
	return Config{
		ListenAddr:    ":9091",
		PublicBaseURL: "http://localhost:9091",
		SMTPAddr:      "localhost:25",
		SMTPFrom:      "no-reply@medcart.local",
	}
}

func applyDefaults(c *Config) {
	d := defaults()
	if c.ListenAddr == "" {
		c.ListenAddr = d.ListenAddr
	}
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = d.PublicBaseURL
	}
	if c.SMTPAddr == "" {
		c.SMTPAddr = d.SMTPAddr
	}
	if c.SMTPFrom == "" {
		c.SMTPFrom = d.SMTPFrom
	}
}

func path() string {
	if p := os.Getenv("MEDCART_CONFIG"); p != "" {
		return p
	}
	return configFilePath
}

func LoadConfig() (Config, error) {
	mu.Lock()
	defer mu.Unlock()

	file, err := os.ReadFile(path())
	if err != nil {
		if os.IsNotExist(err) {
			c := defaults()
			cfg = c
			return c, nil
		}
		return Config{}, err
	}

	var tempCfg Config
	if err := json.Unmarshal(file, &tempCfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&tempCfg)
	cfg = tempCfg
	return cfg, nil
}

func GetConfig() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}
