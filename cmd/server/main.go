// Package main is the entry point for the stroyfin API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stroyfin/internal/domain/banking"
	"stroyfin/internal/domain/catalogs/account"
	"stroyfin/internal/domain/catalogs/cashaccount"
	"stroyfin/internal/domain/catalogs/counterparty"
	"stroyfin/internal/domain/catalogs/legalentity"
	"stroyfin/internal/domain/catalogs/object"
	"stroyfin/internal/domain/documents/contract"
	"stroyfin/internal/domain/documents/invoice"
	"stroyfin/internal/domain/documents/payment"
	"stroyfin/internal/domain/documents/proposal"
	"stroyfin/internal/domain/journal"
	"stroyfin/internal/domain/recurring"
	"stroyfin/internal/domain/supply"
	"stroyfin/internal/infrastructure/bitrix"
	"stroyfin/internal/infrastructure/blob"
	"stroyfin/internal/infrastructure/fns"
	v1 "stroyfin/internal/infrastructure/http/v1"
	"stroyfin/internal/infrastructure/storage/postgres"
	"stroyfin/internal/infrastructure/storage/postgres/catalog_repo"
	"stroyfin/internal/infrastructure/storage/postgres/document_repo"
	"stroyfin/internal/infrastructure/storage/postgres/entity_repo"
	"stroyfin/internal/infrastructure/tochka"
	"stroyfin/pkg/logger"
	"stroyfin/pkg/numerator"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting stroyfin server")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool)
	num := numerator.New(pool)

	// --- Repositories ---
	accountRepo := catalog_repo.NewAccountRepo(txm)
	objectRepo := catalog_repo.NewObjectRepo(txm)
	counterpartyRepo := catalog_repo.NewCounterpartyRepo(txm)
	legalEntityRepo := catalog_repo.NewLegalEntityRepo(txm)
	cashAccountRepo := catalog_repo.NewCashAccountRepo(txm)
	templateRepo := catalog_repo.NewRecurringTemplateRepo(txm)

	contractRepo := document_repo.NewContractRepo(txm)
	actRepo := document_repo.NewActRepo(txm)
	financeRepo := document_repo.NewFinanceRepo(txm)
	paymentRepo := document_repo.NewPaymentRepo(txm)
	invoiceRepo := document_repo.NewInvoiceRepo(txm)
	invoiceItemRepo := document_repo.NewInvoiceItemRepo(txm)
	invoiceEventRepo := document_repo.NewInvoiceEventRepo(txm)
	proposalRepo := document_repo.NewProposalRepo(txm)
	incomeRepo := document_repo.NewIncomeRecordRepo(txm)
	bankOrderRepo := document_repo.NewBankOrderRepo(txm)

	registryRepo := entity_repo.NewRegistryRepo(txm)
	allocRepo := entity_repo.NewAllocationRepo(txm)
	journalRepo := entity_repo.NewJournalEntryRepo(txm)
	supplyRepo := entity_repo.NewSupplyRequestRepo(txm)
	connectionRepo := entity_repo.NewBankConnectionRepo(txm)
	bankAccountRepo := entity_repo.NewBankAccountRepo(txm)
	bankTxnRepo := entity_repo.NewBankTransactionRepo(txm)
	orderEventRepo := entity_repo.NewBankOrderEventRepo(txm)

	// --- Services ---
	accountSvc := account.NewService(accountRepo, txm)
	objectSvc := object.NewService(objectRepo, txm, num)
	legalEntitySvc := legalentity.NewService(legalEntityRepo, txm, num)
	cashAccountSvc := cashaccount.NewService(cashAccountRepo, txm, num)
	counterpartySvc := counterparty.NewService(counterpartyRepo, txm, num,
		fns.NewClient(getEnv("FNS_API_KEY", "")))
	proposalSvc := proposal.NewService(proposalRepo, txm, num)
	contractSvc := contract.NewService(contractRepo, actRepo, financeRepo, txm, num,
		proposalSvc, counterpartySvc)
	invoiceSvc := invoice.NewService(invoiceRepo, invoiceItemRepo, invoiceEventRepo,
		txm, num, contractSvc, accountSvc)
	journalSvc := journal.NewService(journalRepo, accountSvc, txm)
	paymentSvc := payment.NewService(paymentRepo, registryRepo, allocRepo, txm,
		invoiceSvc, journalSvc, accountSvc, contractSvc, objectSvc, cashAccountSvc)
	recurringSvc := recurring.NewService(templateRepo, incomeRepo, txm, num,
		invoiceSvc, journalSvc, accountSvc, contractSvc, objectSvc)

	if err := accountSvc.SeedSystem(ctx); err != nil {
		log.Fatalw("failed to seed system accounts", "error", err)
	}

	blobStore, err := blob.NewFileStore(getEnv("BLOB_DIR", "./data/blobs"))
	if err != nil {
		log.Fatalw("failed to initialize blob store", "error", err)
	}

	cfg := v1.RouterConfig{
		Pool:   pool,
		Logger: log,

		Accounts:       accountSvc,
		Objects:        objectSvc,
		Counterparties: counterpartySvc,
		LegalEntities:  legalEntitySvc,
		CashAccounts:   cashAccountSvc,

		Contracts: contractSvc,
		Proposals: proposalSvc,
		Invoices:  invoiceSvc,
		Payments:  paymentSvc,
		Journal:   journalSvc,
		Recurring: recurringSvc,

		Blobs: blobStore,
	}

	// Bank routes appear only when the provider is configured.
	if clientID := getEnv("TOCHKA_CLIENT_ID", ""); clientID != "" {
		bankClient := tochka.NewClient(clientID, mustEnv("TOCHKA_CLIENT_SECRET"))
		cfg.Banking = banking.NewService(connectionRepo, bankAccountRepo, bankTxnRepo,
			bankOrderRepo, orderEventRepo, txm, num, bankClient, paymentSvc)
		cfg.BankConnections = connectionRepo
		cfg.BankAccounts = bankAccountRepo
	} else {
		log.Warn("TOCHKA_CLIENT_ID not set, banking endpoints disabled")
	}

	if webhookURL := getEnv("BITRIX_WEBHOOK_URL", ""); webhookURL != "" {
		integration := supply.Integration{
			ID:            getEnv("BITRIX_INTEGRATION_ID", "bitrix-main"),
			Name:          getEnv("BITRIX_INTEGRATION_NAME", "Bitrix24"),
			TargetStageID: mustEnv("BITRIX_TARGET_STAGE_ID"),
		}

		mapper, err := bitrix.NewCELMapper(bitrix.MapperConfig{
			ObjectCipherExpr:   getEnv("BITRIX_MAP_OBJECT_CIPHER", ""),
			ContractNumberExpr: getEnv("BITRIX_MAP_CONTRACT_NUMBER", ""),
			AmountExpr:         getEnv("BITRIX_MAP_AMOUNT", ""),
		})
		if err != nil {
			log.Fatalw("failed to compile deal mapping expressions", "error", err)
		}

		client := bitrix.NewClient(webhookURL)
		cfg.Supply = supply.NewProcessor(integration, supplyRepo, txm, client, mapper,
			blobStore, invoiceSvc, objectRepo, contractRepo)
	} else {
		log.Warn("BITRIX_WEBHOOK_URL not set, supply endpoints disabled")
	}

	router := v1.NewRouter(cfg)

	srv := &http.Server{
		Addr:         ":" + getEnv("PORT", "8080"),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("http server failed", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server shutdown failed", "error", err)
	}
	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}
