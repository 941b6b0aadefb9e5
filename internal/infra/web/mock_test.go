//go:build !integration

package web_test

import (
	"context"
	"time"

	"marketplace-credits/internal/domain/model"
	"marketplace-credits/internal/domain/ports/adapter"
	"marketplace-credits/internal/domain/ports/repository"
	"marketplace-credits/internal/usecase"
)

//
// ---------------- use case mocks (Func-field overrides) ----------------
//

func testBalance(userID string, demand, sub int64) *model.CreditBalance {
	now := time.Now()
	return &model.CreditBalance{
		ID:           "bal-" + userID,
		UserID:       userID,
		AmountDemand: demand,
		AmountSub:    sub,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

type mockCreditsUC struct {
	GetBalanceFunc          func(ctx context.Context, userID string) (*model.CreditBalance, error)
	GetHistoryFunc          func(ctx context.Context, userID string, offset, limit int) ([]*model.CreditHistoryEntry, int64, error)
	CreateBalanceFunc       func(ctx context.Context, userID string, amountDemand, amountSub int64) (*model.CreditBalance, error)
	UpdateBalanceFunc       func(ctx context.Context, userID string, amountDemand, amountSub int64, description string) (*model.CreditBalance, error)
	DeleteBalanceFunc       func(ctx context.Context, userID string) error
	AddCreditsFunc          func(ctx context.Context, userID string, demandAmount, subAmount int64, description string) (*model.CreditBalance, error)
	ConsumeFunc             func(ctx context.Context, userID string, demandAmount, subAmount int64, description string) (*model.CreditBalance, error)
	ConsumeWithPriorityFunc func(ctx context.Context, userID string, totalAmount int64, description string) (*model.CreditBalance, error)
}

var _ usecase.CreditsUseCase = (*mockCreditsUC)(nil)

func (m *mockCreditsUC) GetBalance(ctx context.Context, userID string) (*model.CreditBalance, error) {
	if m.GetBalanceFunc != nil {
		return m.GetBalanceFunc(ctx, userID)
	}
	return testBalance(userID, 100, 50), nil
}

func (m *mockCreditsUC) GetHistory(ctx context.Context, userID string, offset, limit int) ([]*model.CreditHistoryEntry, int64, error) {
	if m.GetHistoryFunc != nil {
		return m.GetHistoryFunc(ctx, userID, offset, limit)
	}
	return nil, 0, nil
}

func (m *mockCreditsUC) CreateBalance(ctx context.Context, userID string, amountDemand, amountSub int64) (*model.CreditBalance, error) {
	if m.CreateBalanceFunc != nil {
		return m.CreateBalanceFunc(ctx, userID, amountDemand, amountSub)
	}
	return testBalance(userID, amountDemand, amountSub), nil
}

func (m *mockCreditsUC) UpdateBalance(ctx context.Context, userID string, amountDemand, amountSub int64, description string) (*model.CreditBalance, error) {
	if m.UpdateBalanceFunc != nil {
		return m.UpdateBalanceFunc(ctx, userID, amountDemand, amountSub, description)
	}
	return testBalance(userID, amountDemand, amountSub), nil
}

func (m *mockCreditsUC) DeleteBalance(ctx context.Context, userID string) error {
	if m.DeleteBalanceFunc != nil {
		return m.DeleteBalanceFunc(ctx, userID)
	}
	return nil
}

func (m *mockCreditsUC) AddCredits(ctx context.Context, userID string, demandAmount, subAmount int64, description string) (*model.CreditBalance, error) {
	if m.AddCreditsFunc != nil {
		return m.AddCreditsFunc(ctx, userID, demandAmount, subAmount, description)
	}
	return testBalance(userID, demandAmount, subAmount), nil
}

func (m *mockCreditsUC) Consume(ctx context.Context, userID string, demandAmount, subAmount int64, description string) (*model.CreditBalance, error) {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, userID, demandAmount, subAmount, description)
	}
	return testBalance(userID, 100-demandAmount, 50-subAmount), nil
}

func (m *mockCreditsUC) ConsumeWithPriority(ctx context.Context, userID string, totalAmount int64, description string) (*model.CreditBalance, error) {
	if m.ConsumeWithPriorityFunc != nil {
		return m.ConsumeWithPriorityFunc(ctx, userID, totalAmount, description)
	}
	return testBalance(userID, 100, 50-totalAmount), nil
}

func (m *mockCreditsUC) AddCreditsTx(ctx context.Context, tx repository.Tx, userID string, demandAmount, subAmount int64, description string) (*model.CreditBalance, error) {
	return testBalance(userID, demandAmount, subAmount), nil
}

type mockTransferUC struct {
	TransferFunc func(ctx context.Context, fromUserID, toUserID string, amount int64, description string, actingRole model.Role) (*usecase.TransferResult, error)
}

var _ usecase.TransferUseCase = (*mockTransferUC)(nil)

func (m *mockTransferUC) Transfer(ctx context.Context, fromUserID, toUserID string, amount int64, description string, actingRole model.Role) (*usecase.TransferResult, error) {
	if m.TransferFunc != nil {
		return m.TransferFunc(ctx, fromUserID, toUserID, amount, description, actingRole)
	}
	return &usecase.TransferResult{
		From: testBalance(fromUserID, 100-amount, 50),
		To:   testBalance(toUserID, amount, 0),
	}, nil
}

func (m *mockTransferUC) TransferTx(ctx context.Context, tx repository.Tx, fromUserID, toUserID string, amount int64, description string, actingRole model.Role) (*usecase.TransferResult, error) {
	return m.Transfer(ctx, fromUserID, toUserID, amount, description, actingRole)
}

func testPromo(code string) *model.PromoCode {
	now := time.Now()
	return &model.PromoCode{
		ID:              "promo-" + code,
		Code:            code,
		Discount:        20,
		AllowedTimes:    5,
		AmountAvailable: 5,
		ExpirationDate:  now.Add(24 * time.Hour),
		Active:          true,
		CreatedBy:       "admin",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

type mockPromoUC struct {
	ValidateForUserFunc func(ctx context.Context, code, userID string) (*usecase.PromoValidation, error)
	UseFunc             func(ctx context.Context, code, userID string, transactionID *string) (*usecase.PromoUseResult, error)
	UseLegacyFunc       func(ctx context.Context, code, userID string) (*model.PromoCode, error)
	CreateFunc          func(ctx context.Context, in usecase.PromoCodeInput) (*model.PromoCode, error)
	UpdateFunc          func(ctx context.Context, code string, discount *int, expiration *time.Time, active *bool) (*model.PromoCode, error)
	CancelFunc          func(ctx context.Context, code string) (*model.PromoCode, error)
	DeleteFunc          func(ctx context.Context, code string) error
}

var _ usecase.PromoUseCase = (*mockPromoUC)(nil)

func (m *mockPromoUC) ValidateForUser(ctx context.Context, code, userID string) (*usecase.PromoValidation, error) {
	if m.ValidateForUserFunc != nil {
		return m.ValidateForUserFunc(ctx, code, userID)
	}
	return &usecase.PromoValidation{Valid: true}, nil
}

func (m *mockPromoUC) Use(ctx context.Context, code, userID string, transactionID *string) (*usecase.PromoUseResult, error) {
	if m.UseFunc != nil {
		return m.UseFunc(ctx, code, userID, transactionID)
	}
	return &usecase.PromoUseResult{PromoCode: testPromo(code), Usage: &model.PromoCodeUsage{}}, nil
}

func (m *mockPromoUC) UseTx(ctx context.Context, tx repository.Tx, code, userID string, transactionID *string) (*usecase.PromoUseResult, error) {
	return m.Use(ctx, code, userID, transactionID)
}

func (m *mockPromoUC) UseLegacy(ctx context.Context, code, userID string) (*model.PromoCode, error) {
	if m.UseLegacyFunc != nil {
		return m.UseLegacyFunc(ctx, code, userID)
	}
	return testPromo(code), nil
}

func (m *mockPromoUC) Create(ctx context.Context, in usecase.PromoCodeInput) (*model.PromoCode, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, in)
	}
	p := testPromo(in.Code)
	p.Discount = in.Discount
	p.CreatedBy = in.CreatedBy
	return p, nil
}

func (m *mockPromoUC) Update(ctx context.Context, code string, discount *int, expiration *time.Time, active *bool) (*model.PromoCode, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, code, discount, expiration, active)
	}
	return testPromo(code), nil
}

func (m *mockPromoUC) Cancel(ctx context.Context, code string) (*model.PromoCode, error) {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, code)
	}
	p := testPromo(code)
	p.Active = false
	now := time.Now()
	p.CancelledAt = &now
	return p, nil
}

func (m *mockPromoUC) Delete(ctx context.Context, code string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, code)
	}
	return nil
}

func (m *mockPromoUC) DeactivateExpired(ctx context.Context) (int, error) { return 0, nil }

type mockPaymentTxUC struct {
	ExecutePaymentTransactionFunc         func(ctx context.Context, in usecase.PaymentTxInput) (*usecase.PaymentTxResult, error)
	ExecuteCreditsTransferTransactionFunc func(ctx context.Context, fromUserID, toUserID string, amount int64, description string, actingRole model.Role) (*usecase.TransferResult, error)
}

var _ usecase.PaymentTxUseCase = (*mockPaymentTxUC)(nil)

func (m *mockPaymentTxUC) ExecutePaymentTransaction(ctx context.Context, in usecase.PaymentTxInput) (*usecase.PaymentTxResult, error) {
	if m.ExecutePaymentTransactionFunc != nil {
		return m.ExecutePaymentTransactionFunc(ctx, in)
	}
	return &usecase.PaymentTxResult{
		Balance:         testBalance(in.UserID, in.Amount, 0),
		PaymentIntentID: "pi_test",
		FinalAmount:     in.Amount,
	}, nil
}

func (m *mockPaymentTxUC) ExecuteCreditsTransferTransaction(ctx context.Context, fromUserID, toUserID string, amount int64, description string, actingRole model.Role) (*usecase.TransferResult, error) {
	if m.ExecuteCreditsTransferTransactionFunc != nil {
		return m.ExecuteCreditsTransferTransactionFunc(ctx, fromUserID, toUserID, amount, description, actingRole)
	}
	return &usecase.TransferResult{
		From: testBalance(fromUserID, 100-amount, 50),
		To:   testBalance(toUserID, amount, 0),
	}, nil
}

func testMembership(userID string) *model.Membership {
	now := time.Now()
	return &model.Membership{
		ID:                 "mem-" + userID,
		UserID:             userID,
		StripeCustomerID:   "cus_test",
		SubscriptionStatus: model.SubscriptionStatusInactive,
		PlanType:           "basic",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

type mockMembershipUC struct {
	LinkCustomerFunc            func(ctx context.Context, userID, stripeCustomerID, planType string) (*model.Membership, error)
	GetFunc                     func(ctx context.Context, userID string) (*model.Membership, error)
	StartSubscriptionFunc       func(ctx context.Context, userID string) (*model.Membership, error)
	CancelMembershipFunc        func(ctx context.Context, userID string) error
	HandleSubscriptionEventFunc func(ctx context.Context, event adapter.SubscriptionEvent) error

	handledEvents []adapter.SubscriptionEvent
}

var _ usecase.MembershipUseCase = (*mockMembershipUC)(nil)

func (m *mockMembershipUC) LinkCustomer(ctx context.Context, userID, stripeCustomerID, planType string) (*model.Membership, error) {
	if m.LinkCustomerFunc != nil {
		return m.LinkCustomerFunc(ctx, userID, stripeCustomerID, planType)
	}
	mem := testMembership(userID)
	mem.StripeCustomerID = stripeCustomerID
	mem.PlanType = planType
	return mem, nil
}

func (m *mockMembershipUC) Get(ctx context.Context, userID string) (*model.Membership, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID)
	}
	return testMembership(userID), nil
}

func (m *mockMembershipUC) StartSubscription(ctx context.Context, userID string) (*model.Membership, error) {
	if m.StartSubscriptionFunc != nil {
		return m.StartSubscriptionFunc(ctx, userID)
	}
	mem := testMembership(userID)
	sub := "sub_test"
	mem.StripeSubscriptionID = &sub
	mem.SubscriptionStatus = model.SubscriptionStatusActive
	return mem, nil
}

func (m *mockMembershipUC) CancelMembership(ctx context.Context, userID string) error {
	if m.CancelMembershipFunc != nil {
		return m.CancelMembershipFunc(ctx, userID)
	}
	return nil
}

func (m *mockMembershipUC) HandleSubscriptionEvent(ctx context.Context, event adapter.SubscriptionEvent) error {
	m.handledEvents = append(m.handledEvents, event)
	if m.HandleSubscriptionEventFunc != nil {
		return m.HandleSubscriptionEventFunc(ctx, event)
	}
	return nil
}
