package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"medcart/internal/config"
	"medcart/internal/domain"
	"medcart/internal/gateway"
	httpapi "medcart/internal/http"
	"medcart/internal/notify"
	"medcart/internal/repository"
	"medcart/internal/service"

	_ "medcart/docs"
)

// repos собранный набор репозиториев поверх выбранного хранилища
type repos struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	orders     repository.OrderRepository
	users      repository.UserRepository
	addrs      repository.AddressRepository
	sessions   repository.SessionRepository
	tx         repository.TxManager
}

func buildRepos(cfg config.Config) (repos, func(), error) {
	if cfg.SQLitePath == "" {
		log.Println("sqlitePath is empty, using in-memory store")
		store := repository.NewMemoryStore()
		return repos{
			products:   store,
			categories: repository.NewMemoryCategories(store),
			orders:     repository.NewMemoryOrders(store),
			users:      repository.NewMemoryUsers(store),
			addrs:      repository.NewMemoryAddresses(store),
			sessions:   repository.NewMemorySessions(store),
			tx:         repository.NewMemoryTx(store),
		}, func() {}, nil
	}

	log.Println("Connecting to database...")
	db, err := repository.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		return repos{}, nil, err
	}
	if err := repository.InitSchema(db); err != nil {
		db.Close()
		return repos{}, nil, err
	}
	log.Println("Database initialization complete.")
	store := repository.NewSQLStore(db)
	return repos{
		products:   store,
		categories: repository.NewSQLCategories(store),
		orders:     repository.NewSQLOrders(store),
		users:      repository.NewSQLUsers(store),
		addrs:      repository.NewSQLAddresses(store),
		sessions:   repository.NewSQLSessions(store),
		tx:         repository.NewSQLTx(store),
	}, func() { db.Close() }, nil
}

// seedAdmin заводит учётку администратора из конфига, если её ещё нет
func seedAdmin(ctx context.Context, users repository.UserRepository, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	if _, err := users.GetByEmail(ctx, cfg.AdminEmail); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return users.Create(ctx, &domain.User{
		Email:        cfg.AdminEmail,
		Role:         domain.RoleAdmin,
		PasswordHash: string(hash),
		Verified:     true,
	})
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	r, closeStore, err := buildRepos(cfg)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	defer closeStore()

	if err := seedAdmin(context.Background(), r.users, cfg); err != nil {
		log.Fatalf("admin seed failed: %v", err)
	}

	var gw gateway.Gateway
	if cfg.GatewaySecretKey == "" {
		log.Println("WARN: gatewaySecretKey is empty, using fake payment gateway")
		gw = gateway.NewFake()
	} else {
		gw = gateway.NewClient(cfg.GatewaySecretKey, cfg.GatewayBaseURL)
	}

	var email notify.EmailSender = notify.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword)
	var sms notify.SMSSender
	if cfg.SMSAccountID == "" {
		log.Println("WARN: SMS credentials are empty, SMS delivery goes to a fake sender")
		sms = &notify.FakeSMS{}
	} else {
		sms = notify.NewSMSClient(cfg.SMSAccountID, cfg.SMSToken, cfg.SMSFrom, cfg.SMSBaseURL)
	}

	authSvc := service.NewAuthService(r.users, r.sessions, email, cfg.PublicBaseURL)
	userSvc := service.NewUserService(r.users, r.addrs)
	productSvc := service.NewProductService(r.products, r.categories)
	orderSvc := service.NewOrderService(r.products, r.orders, r.tx)
	paymentSvc := service.NewPaymentService(r.orders, r.tx, gw)
	notifySvc := service.NewNotifyService(email, sms, cfg.PublicBaseURL)

	srv := httpapi.NewServer(authSvc, userSvc, productSvc, orderSvc, paymentSvc, notifySvc)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Engine(),
	}

	go func() {
		log.Printf("HTTP server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
