package dto

import (
	"time"

	"stroyfin/internal/domain/banking"
	"stroyfin/internal/domain/documents/payment"
	"stroyfin/internal/domain/recurring"
)

// --- Payments ---

type CreateIncomePaymentRequest struct {
	AccountID     string     `json:"accountId" binding:"required"`
	ContractID    *string    `json:"contractId"`
	CategoryID    *string    `json:"categoryId"`
	LegalEntityID *string    `json:"legalEntityId"`
	PaymentDate   *time.Time `json:"paymentDate"`
	Amount        string     `json:"amount" binding:"required"`
	AmountGross   string     `json:"amountGross"`
	Description   string     `json:"description"`
}

// ToPayment maps the request to an income payment.
func (r CreateIncomePaymentRequest) ToPayment() (*payment.Payment, error) {
	accountID, err := ParseID("accountId", r.AccountID)
	if err != nil {
		return nil, err
	}
	amount, err := ParseMoney("amount", r.Amount)
	if err != nil {
		return nil, err
	}

	paymentDate := time.Now().UTC()
	if r.PaymentDate != nil {
		paymentDate = *r.PaymentDate
	}

	p := payment.NewPayment(payment.TypeIncome, accountID, amount, paymentDate)
	if p.ContractID, err = ParseOptionalID("contractId", r.ContractID); err != nil {
		return nil, err
	}
	if p.CategoryID, err = ParseOptionalID("categoryId", r.CategoryID); err != nil {
		return nil, err
	}
	if p.LegalEntityID, err = ParseOptionalID("legalEntityId", r.LegalEntityID); err != nil {
		return nil, err
	}
	if r.AmountGross != "" {
		if p.AmountGross, err = ParseMoney("amountGross", r.AmountGross); err != nil {
			return nil, err
		}
	}
	p.Description = r.Description
	return p, nil
}

type CreateExpensePaymentRequest struct {
	AccountID     string     `json:"accountId" binding:"required"`
	ContractID    *string    `json:"contractId"`
	CategoryID    *string    `json:"categoryId"`
	LegalEntityID *string    `json:"legalEntityId"`
	PaymentDate   *time.Time `json:"paymentDate"`
	PlannedDate   time.Time  `json:"plannedDate" binding:"required"`
	Amount        string     `json:"amount" binding:"required"`
	Description   string     `json:"description"`
}

// ToPayment maps the request to an expense payment.
func (r CreateExpensePaymentRequest) ToPayment() (*payment.Payment, error) {
	accountID, err := ParseID("accountId", r.AccountID)
	if err != nil {
		return nil, err
	}
	amount, err := ParseMoney("amount", r.Amount)
	if err != nil {
		return nil, err
	}

	paymentDate := r.PlannedDate
	if r.PaymentDate != nil {
		paymentDate = *r.PaymentDate
	}

	p := payment.NewPayment(payment.TypeExpense, accountID, amount, paymentDate)
	if p.ContractID, err = ParseOptionalID("contractId", r.ContractID); err != nil {
		return nil, err
	}
	if p.CategoryID, err = ParseOptionalID("categoryId", r.CategoryID); err != nil {
		return nil, err
	}
	if p.LegalEntityID, err = ParseOptionalID("legalEntityId", r.LegalEntityID); err != nil {
		return nil, err
	}
	p.Description = r.Description
	return p, nil
}

type PayInvoiceRequest struct {
	CashAccountID string `json:"cashAccountId" binding:"required"`
}

// --- Journal ---

type ManualEntryRequest struct {
	FromAccountID string     `json:"fromAccountId" binding:"required"`
	ToAccountID   string     `json:"toAccountId" binding:"required"`
	Amount        string     `json:"amount" binding:"required"`
	Description   string     `json:"description"`
	Date          *time.Time `json:"date"`
}

// --- Recurring templates ---

type CreateTemplateRequest struct {
	Code       string     `json:"code"`
	Name       string     `json:"name" binding:"required"`
	AccountID  string     `json:"accountId" binding:"required"`
	CategoryID string     `json:"categoryId" binding:"required"`
	ObjectID   *string    `json:"objectId"`
	ContractID *string    `json:"contractId"`
	Amount     string     `json:"amount" binding:"required"`
	Frequency  string     `json:"frequency" binding:"required"`
	StartDate  time.Time  `json:"startDate" binding:"required"`
	EndDate    *time.Time `json:"endDate"`
}

// ToTemplate maps the request to a recurring template.
func (r CreateTemplateRequest) ToTemplate() (*recurring.Template, error) {
	accountID, err := ParseID("accountId", r.AccountID)
	if err != nil {
		return nil, err
	}
	categoryID, err := ParseID("categoryId", r.CategoryID)
	if err != nil {
		return nil, err
	}
	amount, err := ParseMoney("amount", r.Amount)
	if err != nil {
		return nil, err
	}

	t := recurring.NewTemplate(r.Code, r.Name, accountID, categoryID, amount,
		recurring.Frequency(r.Frequency), r.StartDate)
	if t.ObjectID, err = ParseOptionalID("objectId", r.ObjectID); err != nil {
		return nil, err
	}
	if t.ContractID, err = ParseOptionalID("contractId", r.ContractID); err != nil {
		return nil, err
	}
	t.EndDate = r.EndDate
	return t, nil
}

type UpdateTemplateRequest struct {
	Name      string     `json:"name" binding:"required"`
	Amount    string     `json:"amount" binding:"required"`
	Frequency string     `json:"frequency" binding:"required"`
	EndDate   *time.Time `json:"endDate"`
	Version   int        `json:"version" binding:"required,min=1"`
}

// --- Income records ---

type RecordIncomeRequest struct {
	IncomeType  string     `json:"incomeType" binding:"required"`
	CategoryID  string     `json:"categoryId" binding:"required"`
	ObjectID    *string    `json:"objectId"`
	ContractID  *string    `json:"contractId"`
	Amount      string     `json:"amount" binding:"required"`
	PaymentDate *time.Time `json:"paymentDate"`
	Description string     `json:"description"`
}

// ToIncomeRecord maps the request to a domain income record.
func (r RecordIncomeRequest) ToIncomeRecord() (*recurring.IncomeRecord, error) {
	categoryID, err := ParseID("categoryId", r.CategoryID)
	if err != nil {
		return nil, err
	}
	amount, err := ParseMoney("amount", r.Amount)
	if err != nil {
		return nil, err
	}

	paymentDate := time.Now().UTC()
	if r.PaymentDate != nil {
		paymentDate = *r.PaymentDate
	}

	rec := recurring.NewIncomeRecord(recurring.IncomeType(r.IncomeType), categoryID, amount, paymentDate)
	if rec.ObjectID, err = ParseOptionalID("objectId", r.ObjectID); err != nil {
		return nil, err
	}
	if rec.ContractID, err = ParseOptionalID("contractId", r.ContractID); err != nil {
		return nil, err
	}
	rec.Description = r.Description
	return rec, nil
}

// --- Banking ---

type CreateConnectionRequest struct {
	Name         string `json:"name" binding:"required"`
	Provider     string `json:"provider" binding:"required"`
	ClientID     string `json:"clientId" binding:"required"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// ToConnection maps the request to a bank connection.
func (r CreateConnectionRequest) ToConnection() *banking.Connection {
	conn := banking.NewConnection(r.Name, r.Provider, r.ClientID)
	conn.AccessToken = r.AccessToken
	conn.RefreshToken = r.RefreshToken
	return conn
}

type CreateBankAccountRequest struct {
	ExternalID    string  `json:"externalId" binding:"required"`
	AccountNumber string  `json:"accountNumber" binding:"required"`
	Currency      string  `json:"currency"`
	CashAccountID *string `json:"cashAccountId"`
}

type SyncRequest struct {
	From *time.Time `json:"from"`
	To   *time.Time `json:"to"`
}

type ReconcileRequest struct {
	PaymentID string `json:"paymentId" binding:"required"`
}

type MaterializeIncomeRequest struct {
	CashAccountID string `json:"cashAccountId" binding:"required"`
}

type CreateOrderRequest struct {
	ConnectionID  string `json:"connectionId" binding:"required"`
	BankAccountID string `json:"bankAccountId" binding:"required"`

	CounterpartyName    string `json:"counterpartyName" binding:"required"`
	CounterpartyINN     string `json:"counterpartyInn"`
	CounterpartyAccount string `json:"counterpartyAccount" binding:"required"`
	CounterpartyBIC     string `json:"counterpartyBic" binding:"required"`

	Amount      string    `json:"amount" binding:"required"`
	Purpose     string    `json:"purpose" binding:"required"`
	PlannedDate time.Time `json:"plannedDate" binding:"required"`
	InvoiceID   *string   `json:"invoiceId"`
}

// ToOrder maps the request to a payment order.
func (r CreateOrderRequest) ToOrder() (*banking.Order, error) {
	connectionID, err := ParseID("connectionId", r.ConnectionID)
	if err != nil {
		return nil, err
	}
	bankAccountID, err := ParseID("bankAccountId", r.BankAccountID)
	if err != nil {
		return nil, err
	}
	amount, err := ParseMoney("amount", r.Amount)
	if err != nil {
		return nil, err
	}

	o := banking.NewOrder(connectionID, bankAccountID, amount, r.PlannedDate)
	o.CounterpartyName = r.CounterpartyName
	o.CounterpartyINN = r.CounterpartyINN
	o.CounterpartyAccount = r.CounterpartyAccount
	o.CounterpartyBIC = r.CounterpartyBIC
	o.Purpose = r.Purpose
	if o.InvoiceID, err = ParseOptionalID("invoiceId", r.InvoiceID); err != nil {
		return nil, err
	}
	return o, nil
}

type RejectOrderRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type RescheduleOrderRequest struct {
	PlannedDate time.Time `json:"plannedDate" binding:"required"`
}

// --- Supply ---

type ProcessDealRequest struct {
	DealID string `json:"dealId" binding:"required"`
}
