package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marketpay/settlement-api/internal/auth"
	"github.com/marketpay/settlement-api/internal/database"
	"github.com/marketpay/settlement-api/internal/orders"
	"github.com/marketpay/settlement-api/internal/settlement"
	"github.com/marketpay/settlement-api/internal/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	minOrders     = 15
	maxOrders     = 150
	numWorkers    = 5
	refundPercent = 30
	serverAddress = "http://localhost:8080"
)

var (
	products  = []string{"Walnut Desk", "Steel Shelf", "Oak Chair", "Glass Lamp", "Linen Sofa"}
	sellers   = []string{"SEL_001", "SEL_002", "SEL_003", "SEL_004", "SEL_005"}
	suppliers = []string{"SUP_001", "SUP_002", "SUP_003"}
	partners  = []string{"PTR_001", "PTR_002"}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the settlement API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the API and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":     {name: "Authentication"},
			"create":   {name: "Create Order"},
			"generate": {name: "Generate Settlement"},
			"reverse":  {name: "Reverse Order"},
			"batch":    {name: "Batch Lifecycle"},
			"totals":   {name: "Party Totals"},
		},
	}

	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"api_key":    auth.TestAPIKey,
		"api_secret": auth.TestAPISecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

// post issues an authenticated POST and decodes the envelope into out
func (sc *simulationClient) post(route, path string, payload interface{}, out interface{}) error {
	start := time.Now()
	defer func() {
		sc.stats[route].addDuration(time.Since(start))
	}()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest("POST", sc.baseURL+path, body)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.New().String())

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats[route].failures++
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("POST response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats[route].failures++
		return fmt.Errorf("%s failed with status %d: %s", path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return nil
}

// createOrder submits a new order snapshot to the API
// Returns the order ID on success
func (sc *simulationClient) createOrder(request *types.CreateOrderRequest) (string, error) {
	var result struct {
		Data struct {
			Order struct {
				OrderID string `json:"order_id"`
			} `json:"order"`
		} `json:"data"`
	}

	if err := sc.post("create", "/api/v1/orders", request, &result); err != nil {
		return "", err
	}
	if result.Data.Order.OrderID == "" {
		return "", fmt.Errorf("no order ID in response")
	}
	return result.Data.Order.OrderID, nil
}

// generateSettlement triggers settlement generation for a completed order
// Returns the number of items generated
func (sc *simulationClient) generateSettlement(orderID string) (int, error) {
	var result struct {
		Data []settlement.SettlementItem `json:"data"`
	}
	if err := sc.post("generate", fmt.Sprintf("/api/v1/internal/settlements/generate/%s", orderID), nil, &result); err != nil {
		return 0, err
	}
	return len(result.Data), nil
}

// reverseOrder triggers settlement reversal for a refunded order
func (sc *simulationClient) reverseOrder(orderID string) (int, error) {
	var result struct {
		Data []settlement.SettlementItem `json:"data"`
	}
	if err := sc.post("reverse", fmt.Sprintf("/api/v1/internal/settlements/reverse/%s", orderID), nil, &result); err != nil {
		return 0, err
	}
	return len(result.Data), nil
}

// createBatch groups all un-batched items into a new settlement batch
func (sc *simulationClient) createBatch() (*settlement.BatchResponse, error) {
	payload := map[string]interface{}{
		"period_end": time.Now().Add(time.Minute).Format(time.RFC3339),
	}
	var result struct {
		Data settlement.BatchResponse `json:"data"`
	}
	if err := sc.post("batch", "/api/v1/internal/settlements/batches", payload, &result); err != nil {
		return nil, err
	}
	if result.Data.SettlementID == "" {
		return nil, fmt.Errorf("no settlement ID in response")
	}
	return &result.Data, nil
}

// finalizeBatch locks an open batch
func (sc *simulationClient) finalizeBatch(settlementID string) error {
	return sc.post("batch", fmt.Sprintf("/api/v1/internal/settlements/batches/%s/finalize", settlementID), nil, nil)
}

// partyTotals retrieves aggregated totals for one party over the simulation window
func (sc *simulationClient) partyTotals(partyID, partyType string, start, end time.Time) (*types.PartyTotalsResponse, error) {
	reqStart := time.Now()
	defer func() {
		sc.stats["totals"].addDuration(time.Since(reqStart))
	}()

	url := fmt.Sprintf("%s/api/v1/settlements/totals?party_id=%s&party_type=%s&period_start=%s&period_end=%s",
		sc.baseURL, partyID, partyType,
		start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats["totals"].failures++
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		sc.stats["totals"].failures++
		return nil, fmt.Errorf("party totals failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Data types.PartyTotalsResponse `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return &result.Data, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// randomOrderRequest builds a multi-party order snapshot with 1-3 items.
// Roughly a third of items carry a supplier cost basis and a tenth of orders
// carry a referral partner.
func randomOrderRequest(workerID int) *types.CreateOrderRequest {
	request := &types.CreateOrderRequest{
		ClientID: fmt.Sprintf("CLIENT_%d", workerID),
	}
	if rand.Intn(10) == 0 {
		partner := partners[rand.Intn(len(partners))]
		request.PartnerID = &partner
	}

	numItems := rand.Intn(3) + 1
	for i := 0; i < numItems; i++ {
		quantity := int64(rand.Intn(5) + 1)
		unitPrice := decimal.NewFromInt(int64(rand.Intn(9000) + 1000))
		totalPrice := unitPrice.Mul(decimal.NewFromInt(quantity))
		seller := sellers[rand.Intn(len(sellers))]

		item := types.OrderItemRequest{
			ProductName:       products[rand.Intn(len(products))],
			Quantity:          quantity,
			UnitPrice:         unitPrice,
			TotalPrice:        totalPrice,
			SalePriceSnapshot: unitPrice,
			SellerID:          &seller,
		}

		// Most items carry a fixed 10% commission, some carry none
		if rand.Intn(5) != 0 {
			commissionType := "fixed"
			item.CommissionType = &commissionType
			item.CommissionAmount = decimal.NewNullDecimal(totalPrice.Div(decimal.NewFromInt(10)).Truncate(2))
		}

		// Some items are supplied by a vendor with a cost basis
		if rand.Intn(3) == 0 {
			supplier := suppliers[rand.Intn(len(suppliers))]
			item.SupplierID = &supplier
			item.BasePriceSnapshot = decimal.NewNullDecimal(unitPrice.Mul(decimal.NewFromFloat(0.6)).Truncate(2))
		}

		request.Items = append(request.Items, item)
	}

	return request
}

// main runs the settlement simulation
// It starts a local API server and simulates the full order lifecycle:
// ingestion, settlement generation, refunds, batching and reporting
func main() {
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	simulationStart := time.Now().Add(-time.Minute)

	targetOrders := rand.Intn(maxOrders-minOrders) + minOrders
	log.Info().Int("target_orders", targetOrders).Msg("Starting simulation")

	ordersChan := make(chan string, targetOrders)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			createOrdersHTTP(workerID, targetOrders/numWorkers, simClient, ordersChan)
		}(i)
	}

	wg.Wait()
	close(ordersChan)

	var orderIDs []string
	for orderID := range ordersChan {
		orderIDs = append(orderIDs, orderID)
	}

	log.Info().Int("orders_created", len(orderIDs)).Msg("All orders created")

	stats := struct {
		TotalOrders      int
		GeneratedOrders  int
		GeneratedItems   int
		RefundedOrders   int
		ReversalItems    int
		FailedGeneration int
		FailedReversal   int
		StartTime        time.Time
	}{
		StartTime:   time.Now(),
		TotalOrders: len(orderIDs),
	}

	// Generate settlements, re-calling some to exercise idempotency
	for _, orderID := range orderIDs {
		items, err := simClient.generateSettlement(orderID)
		if err != nil {
			log.Error().Err(err).Str("order_id", orderID).Msg("Failed to generate settlement")
			stats.FailedGeneration++
			continue
		}
		stats.GeneratedOrders++
		stats.GeneratedItems += items

		if rand.Intn(10) == 0 {
			again, err := simClient.generateSettlement(orderID)
			if err != nil || again != items {
				log.Error().Err(err).
					Str("order_id", orderID).
					Int("first", items).
					Int("second", again).
					Msg("Idempotent regeneration returned a different item set")
			}
		}

		log.Info().
			Str("order_id", orderID).
			Int("item_count", items).
			Msg("Settlement generated")
	}

	// Refund a fraction of orders
	for _, orderID := range orderIDs {
		if rand.Intn(100) >= refundPercent {
			continue
		}
		items, err := simClient.reverseOrder(orderID)
		if err != nil {
			log.Error().Err(err).Str("order_id", orderID).Msg("Failed to reverse order")
			stats.FailedReversal++
			continue
		}
		stats.RefundedOrders++
		stats.ReversalItems += items
		log.Info().
			Str("order_id", orderID).
			Int("item_count", items).
			Msg("Order reversed")
	}

	// Batch everything generated so far and finalize
	batch, err := simClient.createBatch()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create settlement batch")
	}
	if err := simClient.finalizeBatch(batch.SettlementID); err != nil {
		log.Fatal().Err(err).Str("settlement_id", batch.SettlementID).Msg("Failed to finalize batch")
	}
	log.Info().
		Str("settlement_id", batch.SettlementID).
		Int64("item_count", batch.ItemCount).
		Msg("Batch created and finalized")

	// Report per-party totals
	simulationEnd := time.Now().Add(time.Minute)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SETTLEMENT SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	duration := time.Since(stats.StartTime)
	fmt.Printf(`
Order Statistics
----------------
Total Orders:      %d
Generated:         %d (%d items)
Refunded:          %d (%d reversal items)
Failed Generation: %d
Failed Reversal:   %d
Batch:             %s (%d items)
Duration:          %v

Party Net Positions
-------------------
`, stats.TotalOrders, stats.GeneratedOrders, stats.GeneratedItems,
		stats.RefundedOrders, stats.ReversalItems,
		stats.FailedGeneration, stats.FailedReversal,
		batch.SettlementID, batch.ItemCount,
		duration.Round(time.Millisecond))

	printTotals := func(partyID, partyType string) {
		totals, err := simClient.partyTotals(partyID, partyType, simulationStart, simulationEnd)
		if err != nil {
			log.Error().Err(err).Str("party_id", partyID).Msg("Failed to fetch party totals")
			return
		}
		fmt.Printf("%-10s gross=%12s commission=%12s net=%12s items=%d\n",
			partyID, totals.GrossAmount.StringFixed(2),
			totals.CommissionAmount.StringFixed(2),
			totals.NetAmount.StringFixed(2),
			totals.ItemCount)
	}

	for _, seller := range sellers {
		printTotals(seller, "seller")
	}
	for _, supplier := range suppliers {
		printTotals(supplier, "supplier")
	}
	printTotals("platform", "platform")

	fmt.Println("\n" + strings.Repeat("=", 80))

	log.Info().
		Int("total_orders", stats.TotalOrders).
		Int("generated_items", stats.GeneratedItems).
		Int("reversal_items", stats.ReversalItems).
		Msg("Simulation complete")
	simClient.printPerformanceStats()
}

// createOrdersHTTP generates and submits random order snapshots to the API
// Runs as a worker goroutine, sending created order IDs to ordersChan
func createOrdersHTTP(workerID, numOrders int, simClient *simulationClient, ordersChan chan<- string) {
	for i := 0; i < numOrders; i++ {
		request := randomOrderRequest(workerID)

		orderID, err := simClient.createOrder(request)
		if err != nil {
			log.Error().Err(err).
				Str("worker_id", fmt.Sprintf("%d", workerID)).
				Msg("Failed to create order")
			continue
		}

		ordersChan <- orderID
		log.Info().
			Str("worker_id", fmt.Sprintf("%d", workerID)).
			Str("order_id", orderID).
			Int("item_count", len(request.Items)).
			Msg("Order created")

		// Random sleep between orders
		time.Sleep(time.Duration(rand.Intn(200)) * time.Millisecond)
	}
}

// startServer initializes and starts the settlement API server
// Sets up all required services, handlers and routes
func startServer() error {
	db, err := database.NewDatabase()
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	authService := auth.NewService("settlement-secret-key")
	ordersService := orders.NewService(db)
	settlementService := settlement.NewService(db)
	queryService := settlement.NewQueryService(db)

	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	ordersHandlers := orders.NewGinHandlers(ordersService)
	settlementHandlers := settlement.NewGinHandlers(settlementService, queryService)

	setupRoutes(router, authHandlers, ordersHandlers, settlementHandlers)

	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality; middleware is skipped for the simulation
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	ordersHandlers *orders.GinHandlers,
	settlementHandlers *settlement.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		ordersGroup := v1.Group("/orders")
		{
			ordersGroup.POST("", ordersHandlers.CreateOrderHandler())
			ordersGroup.GET("/:order_id", ordersHandlers.GetOrderHandler())
		}

		settlements := v1.Group("/settlements")
		{
			settlements.GET("/totals", settlementHandlers.PartyTotalsHandler())
			settlements.GET("/orders/:order_id", settlementHandlers.OrderBreakdownHandler())
		}

		internal := v1.Group("/internal")
		{
			internal.POST("/settlements/generate/:order_id", settlementHandlers.GenerateHandler())
			internal.POST("/settlements/reverse/:order_id", settlementHandlers.ReverseOrderHandler())
			internal.POST("/settlements/batches", settlementHandlers.CreateBatchHandler())
			internal.POST("/settlements/batches/:settlement_id/finalize", settlementHandlers.FinalizeHandler())
			internal.POST("/settlements/batches/:settlement_id/cancel", settlementHandlers.CancelHandler())
		}
	}
}
