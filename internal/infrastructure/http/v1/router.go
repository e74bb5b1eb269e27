// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

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
	"stroyfin/internal/infrastructure/blob"
	"stroyfin/internal/infrastructure/http/v1/handlers"
	"stroyfin/internal/infrastructure/http/v1/middleware"
	"stroyfin/internal/infrastructure/storage/postgres"
	"stroyfin/pkg/logger"
)

// RouterConfig holds the services the API exposes.
type RouterConfig struct {
	Pool   *postgres.Pool
	Logger *logger.Logger

	Accounts       *account.Service
	Objects        *object.Service
	Counterparties *counterparty.Service
	LegalEntities  *legalentity.Service
	CashAccounts   *cashaccount.Service

	Contracts *contract.Service
	Proposals *proposal.Service
	Invoices  *invoice.Service
	Payments  *payment.Service
	Journal   *journal.Service
	Recurring *recurring.Service

	Banking         *banking.Service
	BankConnections banking.ConnectionRepository
	BankAccounts    banking.AccountRepository
	Supply          *supply.Processor
	Blobs           *blob.FileStore
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters)
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	base := handlers.NewBaseHandler()

	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	v1 := router.Group("/api/v1")
	{
		registerCatalogRoutes(v1, base, cfg)
		registerDocumentRoutes(v1, base, cfg)
		registerOperationRoutes(v1, base, cfg)
	}

	return router
}

func registerCatalogRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	accountHandler := handlers.NewAccountHandler(base, cfg.Accounts)
	accounts := rg.Group("/accounts")
	{
		accounts.GET("", accountHandler.List)
		accounts.POST("", accountHandler.Create)
		accounts.GET("/:id", accountHandler.Get)
		accounts.PUT("/:id", accountHandler.Update)
		accounts.GET("/:id/children", accountHandler.Children)
		accounts.GET("/:id/balance", accountHandler.Balance)
		accounts.POST("/:id/deactivate", accountHandler.Deactivate)
	}

	objectHandler := handlers.NewObjectHandler(base, cfg.Objects)
	objects := rg.Group("/objects")
	{
		objects.GET("", objectHandler.List)
		objects.POST("", objectHandler.Create)
		objects.GET("/:id", objectHandler.Get)
		objects.PUT("/:id", objectHandler.Update)
		objects.POST("/:id/status", objectHandler.ChangeStatus)
	}

	counterpartyHandler := handlers.NewCounterpartyHandler(base, cfg.Counterparties)
	counterparties := rg.Group("/counterparties")
	{
		counterparties.GET("", counterpartyHandler.List)
		counterparties.POST("", counterpartyHandler.Create)
		counterparties.GET("/:id", counterpartyHandler.Get)
		counterparties.PUT("/:id", counterpartyHandler.Update)
		counterparties.POST("/:id/deletion-mark", counterpartyHandler.SetDeletionMark)
		counterparties.POST("/:id/enrich", counterpartyHandler.Enrich)
	}

	legalEntityHandler := handlers.NewLegalEntityHandler(base, cfg.LegalEntities)
	legalEntities := rg.Group("/legal-entities")
	{
		legalEntities.GET("", legalEntityHandler.List)
		legalEntities.POST("", legalEntityHandler.Create)
		legalEntities.GET("/:id", legalEntityHandler.Get)
		legalEntities.PUT("/:id", legalEntityHandler.Update)
	}

	cashAccountHandler := handlers.NewCashAccountHandler(base, cfg.CashAccounts)
	cashAccounts := rg.Group("/cash-accounts")
	{
		cashAccounts.GET("", cashAccountHandler.List)
		cashAccounts.POST("", cashAccountHandler.Create)
		cashAccounts.GET("/:id", cashAccountHandler.Get)
		cashAccounts.PUT("/:id", cashAccountHandler.Update)
		cashAccounts.POST("/:id/active", cashAccountHandler.SetActive)
	}
}

func registerDocumentRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	contractHandler := handlers.NewContractHandler(base, cfg.Contracts)
	contracts := rg.Group("/contracts")
	{
		contracts.GET("", contractHandler.List)
		contracts.POST("", contractHandler.Create)
		contracts.GET("/:id", contractHandler.Get)
		contracts.PUT("/:id", contractHandler.Update)
		contracts.POST("/:id/activate", contractHandler.Activate)
		contracts.POST("/:id/status", contractHandler.ChangeStatus)
		contracts.GET("/:id/margin", contractHandler.Margin)
		contracts.GET("/:id/balance", contractHandler.Balance)
		contracts.GET("/:id/acts", contractHandler.ListActs)
	}

	acts := rg.Group("/acts")
	{
		acts.POST("", contractHandler.CreateAct)
		acts.GET("/:id", contractHandler.GetAct)
		acts.POST("/:id/sign", contractHandler.SignAct)
		acts.POST("/:id/cancel", contractHandler.CancelAct)
	}

	proposalHandler := handlers.NewProposalHandler(base, cfg.Proposals)
	proposals := rg.Group("/proposals")
	{
		proposals.GET("", proposalHandler.List)
		proposals.POST("", proposalHandler.Create)
		proposals.GET("/:id", proposalHandler.Get)
		proposals.POST("/:id/versions", proposalHandler.NewVersion)
		proposals.GET("/:id/versions", proposalHandler.ListVersions)
		proposals.POST("/:id/approve", proposalHandler.Approve)
		proposals.POST("/:id/decline", proposalHandler.Decline)
	}

	invoiceHandler := handlers.NewInvoiceHandler(base, cfg.Invoices)
	paymentHandler := handlers.NewPaymentHandler(base, cfg.Payments)
	journalHandler := handlers.NewJournalHandler(base, cfg.Journal)
	invoices := rg.Group("/invoices")
	{
		invoices.GET("", invoiceHandler.List)
		invoices.POST("", invoiceHandler.Create)
		invoices.GET("/:id", invoiceHandler.Get)
		invoices.PUT("/:id", invoiceHandler.Amend)
		invoices.GET("/:id/items", invoiceHandler.Items)
		invoices.PUT("/:id/items", invoiceHandler.SetItems)
		invoices.GET("/:id/allocations", invoiceHandler.Allocations)
		invoices.PUT("/:id/allocations", invoiceHandler.SetAllocations)
		invoices.POST("/:id/approve", invoiceHandler.Approve)
		invoices.POST("/:id/reject", invoiceHandler.Reject)
		invoices.POST("/:id/schedule", invoiceHandler.Schedule)
		invoices.POST("/:id/cancel", invoiceHandler.Cancel)
		invoices.GET("/:id/events", invoiceHandler.Events)
		invoices.GET("/:id/entries", journalHandler.ListByInvoice)
		invoices.POST("/:id/pay", paymentHandler.PayInvoice)
	}

	blobHandler := handlers.NewBlobHandler(base, cfg.Blobs)
	rg.POST("/blobs", blobHandler.Upload)
}

func registerOperationRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	paymentHandler := handlers.NewPaymentHandler(base, cfg.Payments)
	payments := rg.Group("/payments")
	{
		payments.GET("", paymentHandler.List)
		payments.POST("/income", paymentHandler.CreateIncome)
		payments.POST("/expense", paymentHandler.CreateExpense)
		payments.GET("/:id", paymentHandler.Get)
		payments.POST("/:id/paid", paymentHandler.MarkPaid)
		payments.POST("/:id/cancel", paymentHandler.Cancel)
	}

	registry := rg.Group("/registry")
	{
		registry.GET("/:id", paymentHandler.GetRegistry)
		registry.POST("/:id/approve", paymentHandler.ApproveRegistry)
		registry.POST("/:id/pay", paymentHandler.PayRegistry)
		registry.POST("/:id/cancel", paymentHandler.CancelRegistry)
	}

	journalHandler := handlers.NewJournalHandler(base, cfg.Journal)
	journalGroup := rg.Group("/journal")
	{
		journalGroup.GET("", journalHandler.List)
		journalGroup.POST("", journalHandler.PostManual)
	}

	contractHandler := handlers.NewContractHandler(base, cfg.Contracts)
	reports := rg.Group("/reports")
	{
		reports.GET("/cashflow", contractHandler.Cashflow)
		reports.GET("/cashflow/series", contractHandler.CashflowSeries)
	}

	recurringHandler := handlers.NewRecurringHandler(base, cfg.Recurring)
	templates := rg.Group("/recurring-templates")
	{
		templates.GET("", recurringHandler.ListTemplates)
		templates.POST("", recurringHandler.CreateTemplate)
		templates.GET("/:id", recurringHandler.GetTemplate)
		templates.PUT("/:id", recurringHandler.UpdateTemplate)
		templates.POST("/:id/active", recurringHandler.SetActive)
	}
	income := rg.Group("/income")
	{
		income.GET("", recurringHandler.ListIncome)
		income.POST("", recurringHandler.RecordIncome)
		income.GET("/:id", recurringHandler.GetIncome)
	}

	if cfg.Banking != nil {
		bankingHandler := handlers.NewBankingHandler(base, cfg.Banking, cfg.BankConnections, cfg.BankAccounts)
		connections := rg.Group("/bank-connections")
		{
			connections.GET("", bankingHandler.ListConnections)
			connections.POST("", bankingHandler.CreateConnection)
			connections.GET("/:id/accounts", bankingHandler.ListAccounts)
			connections.POST("/:id/accounts", bankingHandler.CreateAccount)
			connections.POST("/:id/sync", bankingHandler.Sync)
		}
		transactions := rg.Group("/bank-transactions")
		{
			transactions.GET("", bankingHandler.ListTransactions)
			transactions.POST("/:id/reconcile", bankingHandler.Reconcile)
			transactions.POST("/:id/materialize", bankingHandler.MaterializeIncome)
			transactions.POST("/:id/ignore", bankingHandler.Ignore)
		}
		orders := rg.Group("/bank-orders")
		{
			orders.POST("", bankingHandler.CreateOrder)
			orders.GET("/:id", bankingHandler.GetOrder)
			orders.POST("/:id/approve", bankingHandler.ApproveOrder)
			orders.POST("/:id/send", bankingHandler.SendOrder)
			orders.POST("/:id/reject", bankingHandler.RejectOrder)
			orders.POST("/:id/paid", bankingHandler.MarkOrderPaid)
			orders.POST("/:id/cancel", bankingHandler.CancelOrder)
			orders.POST("/:id/reschedule", bankingHandler.RescheduleOrder)
			orders.GET("/:id/events", bankingHandler.OrderHistory)
		}
	}

	if cfg.Supply != nil {
		supplyHandler := handlers.NewSupplyHandler(base, cfg.Supply)
		supplyRequests := rg.Group("/supply-requests")
		{
			supplyRequests.GET("", supplyHandler.List)
			supplyRequests.POST("/process", supplyHandler.ProcessDeal)
			supplyRequests.GET("/:id", supplyHandler.Get)
			supplyRequests.POST("/:id/reprocess", supplyHandler.Reprocess)
			supplyRequests.POST("/:id/processed", supplyHandler.MarkProcessed)
		}
	}
}
