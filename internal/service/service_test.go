package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lojapos/backend/internal/cache"
	"lojapos/backend/internal/domain"
	"lojapos/backend/internal/store"
	"lojapos/backend/internal/store/memory"
)

func newTestService() *Service {
	repo := memory.NewSeeded()
	return New(repo, cache.NoopFeeScheduleCache{}, 5*time.Minute)
}

func operatorContext() context.Context {
	return WithActor(context.Background(), domain.Actor{
		Username: "operator",
		Role:     "operator",
	})
}

func adminContext() context.Context {
	return WithActor(context.Background(), domain.Actor{
		Username: "admin",
		Role:     "admin",
	})
}

func TestCheckoutCashHappyPath(t *testing.T) {
	svc := newTestService()
	ctx := operatorContext()

	// 2x Arroz Branco 5kg at 2790, cost 1850.
	resp, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items: []domain.CartItem{
			{ProductID: "prod-arroz-01", Qty: 2},
		},
		Payments: []domain.CartPayment{
			{PaymentMethodID: "pm-cash", AmountCents: 5580},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	sale := resp.Sale
	if sale.SubtotalCents != 5580 {
		t.Fatalf("expected subtotal 5580, got %d", sale.SubtotalCents)
	}
	if sale.TotalCents != sale.SubtotalCents-sale.DiscountAmountCents {
		t.Fatalf("total %d does not reconcile with subtotal %d minus discount %d", sale.TotalCents, sale.SubtotalCents, sale.DiscountAmountCents)
	}
	if sale.TotalCostCents != 3700 {
		t.Fatalf("expected total cost 3700, got %d", sale.TotalCostCents)
	}
	if sale.GrossProfitCents != sale.TotalCents-sale.TotalCostCents {
		t.Fatalf("gross profit %d does not reconcile", sale.GrossProfitCents)
	}
	if sale.TotalFeesCents != 0 {
		t.Fatalf("cash sale should carry no fees, got %d", sale.TotalFeesCents)
	}
	if sale.NetProfitCents != sale.GrossProfitCents {
		t.Fatalf("net profit should equal gross profit on a fee-free sale")
	}
	if sale.OperatorUsername != "operator" {
		t.Fatalf("expected operator username on sale, got %q", sale.OperatorUsername)
	}

	product, err := svc.GetProduct(ctx, "prod-arroz-01")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.Stock != 78 {
		t.Fatalf("expected stock 78 after sale, got %d", product.Stock)
	}

	movements, err := svc.ListStockMovements(ctx, "prod-arroz-01", 10)
	if err != nil {
		t.Fatalf("list movements failed: %v", err)
	}
	if len(movements) == 0 {
		t.Fatalf("expected a stock movement for the sale")
	}
	latest := movements[0]
	if latest.Type != domain.MovementTypeSale || latest.Qty != 2 {
		t.Fatalf("unexpected movement %+v", latest)
	}
	if latest.PreviousStock != 80 || latest.NewStock != 78 {
		t.Fatalf("expected movement 80 -> 78, got %d -> %d", latest.PreviousStock, latest.NewStock)
	}
	if latest.SaleID != sale.ID {
		t.Fatalf("movement should reference the sale")
	}

	entries, err := svc.ListFinancialEntries(adminContext(), "", "", 10)
	if err != nil {
		t.Fatalf("list financial entries failed: %v", err)
	}
	foundIncome := false
	for _, entry := range entries {
		if entry.SaleID == sale.ID {
			foundIncome = true
			if entry.Type != domain.FinancialTypeIncome || entry.Status != domain.FinancialStatusPaid {
				t.Fatalf("unexpected financial entry %+v", entry)
			}
			if entry.AmountCents != sale.TotalCents {
				t.Fatalf("financial entry amount %d, want %d", entry.AmountCents, sale.TotalCents)
			}
		}
	}
	if !foundIncome {
		t.Fatalf("expected an income entry for the sale")
	}
}

func TestCheckoutPercentDiscount(t *testing.T) {
	svc := newTestService()

	// 10x Leite 599 = 5990; 10% off = 599.
	resp, err := svc.Checkout(operatorContext(), domain.CheckoutRequest{
		DiscountType: domain.DiscountTypePercent,
		DiscountPct:  10,
		Items: []domain.CartItem{
			{ProductID: "prod-leite-01", Qty: 10},
		},
		Payments: []domain.CartPayment{
			{PaymentMethodID: "pm-pix", AmountCents: 5391},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if resp.Sale.DiscountAmountCents != 599 {
		t.Fatalf("expected discount 599, got %d", resp.Sale.DiscountAmountCents)
	}
	if resp.Sale.TotalCents != 5391 {
		t.Fatalf("expected total 5391, got %d", resp.Sale.TotalCents)
	}
	// Pix fee 0.99% of 5391 = 53.37 -> 53.
	if resp.Sale.TotalFeesCents != 53 {
		t.Fatalf("expected pix fee 53, got %d", resp.Sale.TotalFeesCents)
	}
}

func TestCheckoutCreditInstallmentsAppliesFee(t *testing.T) {
	svc := newTestService()

	// 10x Cafe 2190 = 21900; 3x installments at 5.99% = 1311.81 -> 1312.
	resp, err := svc.Checkout(operatorContext(), domain.CheckoutRequest{
		Items: []domain.CartItem{
			{ProductID: "prod-cafe-01", Qty: 10},
		},
		Payments: []domain.CartPayment{
			{PaymentMethodID: "pm-credit", AmountCents: 21900, Installments: 3},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if resp.Sale.TotalFeesCents != 1312 {
		t.Fatalf("expected installment fee 1312, got %d", resp.Sale.TotalFeesCents)
	}
	if resp.Sale.NetProfitCents != resp.Sale.GrossProfitCents-1312 {
		t.Fatalf("net profit should be gross minus fees")
	}
	if len(resp.Payments) != 1 || resp.Payments[0].FeeCents != 1312 {
		t.Fatalf("expected payment leg to carry the fee")
	}
	if resp.Payments[0].NetAmountCents != 21900-1312 {
		t.Fatalf("expected net amount %d, got %d", 21900-1312, resp.Payments[0].NetAmountCents)
	}
}

func TestCheckoutSplitPayments(t *testing.T) {
	svc := newTestService()

	// 2x Sabao 1099 = 2198, half cash, half debit. Debit fee 1.39% of 1099 = 15.28 -> 15.
	resp, err := svc.Checkout(operatorContext(), domain.CheckoutRequest{
		Items: []domain.CartItem{
			{ProductID: "prod-sabao-01", Qty: 2},
		},
		Payments: []domain.CartPayment{
			{PaymentMethodID: "pm-cash", AmountCents: 1099},
			{PaymentMethodID: "pm-debit", AmountCents: 1099},
		},
	})
	if err != nil {
		t.Fatalf("split checkout failed: %v", err)
	}
	if len(resp.Payments) != 2 {
		t.Fatalf("expected 2 payment legs, got %d", len(resp.Payments))
	}
	if resp.Sale.TotalFeesCents != 15 {
		t.Fatalf("expected total fees 15, got %d", resp.Sale.TotalFeesCents)
	}
}

func TestCheckoutPaymentMismatch(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(operatorContext(), domain.CheckoutRequest{
		Items: []domain.CartItem{
			{ProductID: "prod-arroz-01", Qty: 1},
		},
		Payments: []domain.CartPayment{
			{PaymentMethodID: "pm-cash", AmountCents: 1000},
		},
	})
	if !errors.Is(err, store.ErrPaymentMismatch) {
		t.Fatalf("expected ErrPaymentMismatch, got %v", err)
	}
}

func TestCheckoutToleratesOneCentGap(t *testing.T) {
	svc := newTestService()

	// Total 2790, paid 2789: inside the one-cent tolerance.
	_, err := svc.Checkout(operatorContext(), domain.CheckoutRequest{
		Items: []domain.CartItem{
			{ProductID: "prod-arroz-01", Qty: 1},
		},
		Payments: []domain.CartPayment{
			{PaymentMethodID: "pm-cash", AmountCents: 2789},
		},
	})
	if err != nil {
		t.Fatalf("expected one-cent gap to be tolerated, got %v", err)
	}
}

func TestCheckoutInvalidDiscount(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(operatorContext(), domain.CheckoutRequest{
		DiscountType: domain.DiscountTypePercent,
		DiscountPct:  140,
		Items: []domain.CartItem{
			{ProductID: "prod-arroz-01", Qty: 1},
		},
		Payments: []domain.CartPayment{
			{PaymentMethodID: "pm-cash", AmountCents: 2790},
		},
	})
	if !errors.Is(err, store.ErrInvalidDiscount) {
		t.Fatalf("expected ErrInvalidDiscount, got %v", err)
	}
}

func TestCheckoutUnknownProduct(t *testing.T) {
	svc := newTestService()

	_, err := svc.Checkout(operatorContext(), domain.CheckoutRequest{
		Items: []domain.CartItem{
			{ProductID: "prod-nope", Qty: 1},
		},
		Payments: []domain.CartPayment{
			{PaymentMethodID: "pm-cash", AmountCents: 100},
		},
	})
	if !errors.Is(err, store.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestCheckoutInsufficientStockLeavesNothingBehind(t *testing.T) {
	svc := newTestService()
	ctx := operatorContext()

	before, err := svc.GetProduct(ctx, "prod-cafe-01")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	movementsBefore, err := svc.ListStockMovements(ctx, "", 500)
	if err != nil {
		t.Fatalf("list movements failed: %v", err)
	}

	overQty := before.Stock + 1
	amount := 2790 + int64(overQty)*2190
	_, err = svc.Checkout(ctx, domain.CheckoutRequest{
		Items: []domain.CartItem{
			{ProductID: "prod-arroz-01", Qty: 1},
			{ProductID: "prod-cafe-01", Qty: overQty},
		},
		Payments: []domain.CartPayment{
			{PaymentMethodID: "pm-cash", AmountCents: amount},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// The failed checkout must not have touched any record.
	arroz, err := svc.GetProduct(ctx, "prod-arroz-01")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if arroz.Stock != 80 {
		t.Fatalf("expected arroz stock untouched at 80, got %d", arroz.Stock)
	}
	sales, err := svc.ListSales(ctx, "", 100)
	if err != nil {
		t.Fatalf("list sales failed: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("expected no sale recorded, got %d", len(sales))
	}
	movementsAfter, err := svc.ListStockMovements(ctx, "", 500)
	if err != nil {
		t.Fatalf("list movements failed: %v", err)
	}
	if len(movementsAfter) != len(movementsBefore) {
		t.Fatalf("expected no new movements, had %d now %d", len(movementsBefore), len(movementsAfter))
	}
	entries, err := svc.ListFinancialEntries(adminContext(), "", "", 100)
	if err != nil {
		t.Fatalf("list financial entries failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no financial entries, got %d", len(entries))
	}
}

func TestCheckoutLastUnitRace(t *testing.T) {
	svc := newTestService()

	// Leave exactly one unit on the shelf.
	_, err := svc.AdjustStock(adminContext(), domain.StockAdjustmentRequest{
		ProductID:  "prod-deterg-01",
		CountedQty: 1,
		Reason:     "test count",
	})
	if err != nil {
		t.Fatalf("adjust stock failed: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Checkout(operatorContext(), domain.CheckoutRequest{
				Items: []domain.CartItem{
					{ProductID: "prod-deterg-01", Qty: 1},
				},
				Payments: []domain.CartPayment{
					{PaymentMethodID: "pm-cash", AmountCents: 279},
				},
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes, stockouts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, store.ErrInsufficientStock):
			stockouts++
		default:
			t.Fatalf("unexpected checkout error: %v", err)
		}
	}
	if successes != 1 || stockouts != 1 {
		t.Fatalf("expected exactly one winner, got %d successes and %d stockouts", successes, stockouts)
	}

	product, err := svc.GetProduct(operatorContext(), "prod-deterg-01")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.Stock != 0 {
		t.Fatalf("expected stock 0 after race, got %d", product.Stock)
	}
}

func TestCheckoutUpdatesCustomerAggregate(t *testing.T) {
	svc := newTestService()
	ctx := operatorContext()

	customer, err := svc.CreateCustomer(ctx, domain.CustomerCreateRequest{
		Name:  "Maria Souza",
		Phone: "11988887777",
	})
	if err != nil {
		t.Fatalf("create customer failed: %v", err)
	}

	_, err = svc.Checkout(ctx, domain.CheckoutRequest{
		CustomerID: customer.ID,
		Items: []domain.CartItem{
			{ProductID: "prod-refri-01", Qty: 2},
		},
		Payments: []domain.CartPayment{
			{PaymentMethodID: "pm-cash", AmountCents: 1798},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	updated, err := svc.GetCustomer(ctx, customer.ID)
	if err != nil {
		t.Fatalf("get customer failed: %v", err)
	}
	if updated.TotalPurchasesCents != 1798 {
		t.Fatalf("expected total purchases 1798, got %d", updated.TotalPurchasesCents)
	}
	if updated.PurchaseCount != 1 {
		t.Fatalf("expected purchase count 1, got %d", updated.PurchaseCount)
	}
	if updated.LastPurchaseAt == nil {
		t.Fatalf("expected last purchase timestamp to be set")
	}
}

func TestCreateProductRequiresAdmin(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateProduct(operatorContext(), domain.ProductCreateRequest{
		SKU:            "FAR-1KG",
		Name:           "Farinha de Trigo 1kg",
		Category:       "mercearia",
		CostPriceCents: 310,
		SalePriceCents: 499,
		InitialStock:   30,
		MinStock:       8,
	})
	if err == nil {
		t.Fatalf("expected non-admin create product to fail")
	}
}

func TestCreateProductRecordsInitialEntry(t *testing.T) {
	svc := newTestService()
	ctx := adminContext()

	product, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		SKU:            "FAR-1KG",
		Name:           "Farinha de Trigo 1kg",
		Category:       "mercearia",
		CostPriceCents: 310,
		SalePriceCents: 499,
		InitialStock:   30,
		MinStock:       8,
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	movements, err := svc.ListStockMovements(ctx, product.ID, 10)
	if err != nil {
		t.Fatalf("list movements failed: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected one entry movement, got %d", len(movements))
	}
	if movements[0].Type != domain.MovementTypeEntry || movements[0].NewStock != 30 {
		t.Fatalf("unexpected initial movement %+v", movements[0])
	}
}

func TestAdjustStockRecordsDelta(t *testing.T) {
	svc := newTestService()

	// Feijao starts at 90; a count of 84 is a delta of -6.
	movement, err := svc.AdjustStock(adminContext(), domain.StockAdjustmentRequest{
		ProductID:  "prod-feijao-01",
		CountedQty: 84,
		Reason:     "quebra de estoque",
	})
	if err != nil {
		t.Fatalf("adjust stock failed: %v", err)
	}
	if movement.Type != domain.MovementTypeAdjustment {
		t.Fatalf("expected adjustment movement, got %s", movement.Type)
	}
	if movement.Qty != -6 {
		t.Fatalf("expected delta -6, got %d", movement.Qty)
	}
	if movement.PreviousStock != 90 || movement.NewStock != 84 {
		t.Fatalf("expected 90 -> 84, got %d -> %d", movement.PreviousStock, movement.NewStock)
	}
}

func TestAdjustStockRequiresAdmin(t *testing.T) {
	svc := newTestService()

	_, err := svc.AdjustStock(operatorContext(), domain.StockAdjustmentRequest{
		ProductID:  "prod-feijao-01",
		CountedQty: 84,
	})
	if err == nil {
		t.Fatalf("expected non-admin adjustment to fail")
	}
}

func TestActivateFeeScheduleSwapsActive(t *testing.T) {
	svc := newTestService()
	ctx := adminContext()

	created, err := svc.CreateFeeSchedule(ctx, domain.CardFeeSchedule{
		Name:      "Maquininha Nova",
		CreditFee: 2.89,
		DebitFee:  1.19,
		PixFee:    0.49,
		InstallmentFees: map[int]float64{
			2: 4.09,
			3: 5.39,
		},
	})
	if err != nil {
		t.Fatalf("create fee schedule failed: %v", err)
	}
	if created.Active {
		t.Fatalf("new schedules must start inactive")
	}

	activated, err := svc.ActivateFeeSchedule(ctx, created.ID)
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if !activated.Active {
		t.Fatalf("expected schedule to be active")
	}

	schedules, err := svc.ListFeeSchedules(ctx)
	if err != nil {
		t.Fatalf("list schedules failed: %v", err)
	}
	activeCount := 0
	for _, schedule := range schedules {
		if schedule.Active {
			activeCount++
		}
	}
	if activeCount != 1 {
		t.Fatalf("expected exactly one active schedule, got %d", activeCount)
	}
}

func TestDailyReportAggregatesSales(t *testing.T) {
	svc := newTestService()
	ctx := operatorContext()

	for i := 0; i < 2; i++ {
		_, err := svc.Checkout(ctx, domain.CheckoutRequest{
			Items: []domain.CartItem{
				{ProductID: "prod-biscoito-01", Qty: 3},
			},
			Payments: []domain.CartPayment{
				{PaymentMethodID: "pm-cash", AmountCents: 1047},
			},
		})
		if err != nil {
			t.Fatalf("checkout #%d failed: %v", i, err)
		}
	}

	report, err := svc.DailyReport(adminContext(), "")
	if err != nil {
		t.Fatalf("daily report failed: %v", err)
	}
	if report.Sales != 2 {
		t.Fatalf("expected 2 sales, got %d", report.Sales)
	}
	if report.GrossSalesCents != 2094 {
		t.Fatalf("expected gross 2094, got %d", report.GrossSalesCents)
	}
	if len(report.ByPayment) != 1 || report.ByPayment[0].MethodType != domain.PaymentTypeCash {
		t.Fatalf("expected a single cash bucket, got %+v", report.ByPayment)
	}
}

func TestCheckoutWritesAuditLog(t *testing.T) {
	svc := newTestService()

	resp, err := svc.Checkout(operatorContext(), domain.CheckoutRequest{
		Items: []domain.CartItem{
			{ProductID: "prod-acucar-01", Qty: 1},
		},
		Payments: []domain.CartPayment{
			{PaymentMethodID: "pm-cash", AmountCents: 529},
		},
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	logs, err := svc.ListAuditLogs(adminContext(), "", 100)
	if err != nil {
		t.Fatalf("list audit logs failed: %v", err)
	}
	found := false
	for _, entry := range logs {
		if entry.Action == "checkout" && entry.EntityID == resp.Sale.ID {
			found = true
			if entry.ActorUsername != "operator" {
				t.Fatalf("expected operator as audit actor, got %s", entry.ActorUsername)
			}
		}
	}
	if !found {
		t.Fatalf("expected a checkout audit entry")
	}
}

func TestAuthenticateSeededUsers(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	actor, err := svc.Authenticate(ctx, "admin", "admin123")
	if err != nil {
		t.Fatalf("expected seeded admin login to succeed: %v", err)
	}
	if actor.Role != "admin" {
		t.Fatalf("expected admin role, got %s", actor.Role)
	}

	if _, err := svc.Authenticate(ctx, "admin", "wrong-password"); err == nil {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestCreateOperatorRequiresAdmin(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateOperator(operatorContext(), domain.OperatorCreateRequest{
		Username: "caixa2",
		Password: "segredo-forte",
	})
	if err == nil {
		t.Fatalf("expected non-admin operator creation to fail")
	}

	created, err := svc.CreateOperator(adminContext(), domain.OperatorCreateRequest{
		Username: "caixa2",
		Password: "segredo-forte",
	})
	if err != nil {
		t.Fatalf("create operator failed: %v", err)
	}
	if created.Role != "operator" {
		t.Fatalf("expected operator role, got %s", created.Role)
	}

	if _, err := svc.Authenticate(context.Background(), "caixa2", "segredo-forte"); err != nil {
		t.Fatalf("expected new operator login to succeed: %v", err)
	}
}

func TestCheckoutAggregatesDuplicateLines(t *testing.T) {
	svc := newTestService()
	ctx := operatorContext()

	// Arroz has 80 in stock; each 50-unit line fits alone but the cart as a
	// whole does not.
	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		Items: []domain.CartItem{
			{ProductID: "prod-arroz-01", Qty: 50},
			{ProductID: "prod-arroz-01", Qty: 50},
		},
		Payments: []domain.CartPayment{
			{PaymentMethodID: "pm-cash", AmountCents: 279000},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	product, err := svc.GetProduct(ctx, "prod-arroz-01")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.Stock != 80 {
		t.Fatalf("rejected cart changed stock: got %d, want 80", product.Stock)
	}
}

func TestCheckoutReplaysIdempotencyKey(t *testing.T) {
	svc := newTestService()
	ctx := operatorContext()

	req := domain.CheckoutRequest{
		IdempotencyKey: "terminal-2-retry-1",
		Items: []domain.CartItem{
			{ProductID: "prod-arroz-01", Qty: 2},
		},
		Payments: []domain.CartPayment{
			{PaymentMethodID: "pm-cash", AmountCents: 5580},
		},
	}

	first, err := svc.Checkout(ctx, req)
	if err != nil {
		t.Fatalf("first checkout failed: %v", err)
	}
	second, err := svc.Checkout(ctx, req)
	if err != nil {
		t.Fatalf("retried checkout failed: %v", err)
	}
	if second.Sale.ID != first.Sale.ID {
		t.Fatalf("retry created a second sale: %s vs %s", second.Sale.ID, first.Sale.ID)
	}
	if second.Sale.Code != first.Sale.Code {
		t.Fatalf("retry changed the sale code: %s vs %s", second.Sale.Code, first.Sale.Code)
	}

	product, err := svc.GetProduct(ctx, "prod-arroz-01")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.Stock != 78 {
		t.Fatalf("retry charged the cart twice: stock %d, want 78", product.Stock)
	}

	sales, err := svc.ListSales(ctx, "", 10)
	if err != nil {
		t.Fatalf("list sales failed: %v", err)
	}
	if len(sales) != 1 {
		t.Fatalf("expected one stored sale, got %d", len(sales))
	}
}

func TestPriceCheckBySKU(t *testing.T) {
	svc := newTestService()

	product, err := svc.PriceCheck(context.Background(), " arz-5kg ")
	if err != nil {
		t.Fatalf("price check failed: %v", err)
	}
	if product.ID != "prod-arroz-01" || product.SalePriceCents != 2790 {
		t.Fatalf("unexpected product: %+v", product)
	}

	if _, err := svc.PriceCheck(context.Background(), "NOPE-000"); !errors.Is(err, store.ErrProductNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}
}

func TestResetUserPassword(t *testing.T) {
	svc := newTestService()

	if err := svc.ResetUserPassword(operatorContext(), domain.PasswordResetRequest{
		Username:    "operator",
		NewPassword: "nova-senha-123",
	}); err == nil {
		t.Fatalf("expected non-admin password reset to fail")
	}

	if err := svc.ResetUserPassword(adminContext(), domain.PasswordResetRequest{
		Username:    "operator",
		NewPassword: "curta",
	}); !errors.Is(err, store.ErrInvalidSale) {
		t.Fatalf("expected short password to be rejected, got %v", err)
	}

	if err := svc.ResetUserPassword(adminContext(), domain.PasswordResetRequest{
		Username:    "Operator",
		NewPassword: "nova-senha-123",
	}); err != nil {
		t.Fatalf("password reset failed: %v", err)
	}

	if _, err := svc.Authenticate(context.Background(), "operator", "nova-senha-123"); err != nil {
		t.Fatalf("expected new password to authenticate: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "operator", "operator123"); err == nil {
		t.Fatalf("expected old password to stop working")
	}
}
