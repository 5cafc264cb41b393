package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ksred/auction-api/internal/auth"
	"github.com/ksred/auction-api/internal/bidding"
	"github.com/ksred/auction-api/internal/catalog"
	"github.com/ksred/auction-api/internal/database"
	"github.com/ksred/auction-api/internal/ledger"
	"github.com/ksred/auction-api/internal/locks"
	"github.com/ksred/auction-api/internal/notification"
	"github.com/ksred/auction-api/internal/rejection"
	"github.com/ksred/auction-api/internal/reputation"
	"github.com/ksred/auction-api/internal/settings"
	"github.com/ksred/auction-api/internal/settlement"
	"github.com/ksred/auction-api/pkg/middleware"
)

const (
	serverAddress = "http://localhost:8080"
	jwtSecret     = "auction-simulation-secret"
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// simulationClient drives the auction lifecycle over HTTP with one token per
// simulated account.
type simulationClient struct {
	baseURL string
	client  *http.Client
	tokens  map[string]string // account name -> JWT
	users   map[string]string // account name -> user id
}

func newSimulationClient() *simulationClient {
	return &simulationClient{
		baseURL: serverAddress,
		client:  &http.Client{Timeout: 10 * time.Second},
		tokens:  make(map[string]string),
		users:   make(map[string]string),
	}
}

// doJSON performs one request and decodes the envelope's data field into out.
func (sc *simulationClient) doJSON(method, path, account string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if account != "" {
		req.Header.Set("Authorization", "Bearer "+sc.tokens[account])
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return json.Unmarshal(envelope.Data, out)
}

// registerAccount creates a user and fetches a token for it.
func (sc *simulationClient) registerAccount(name, email, fullName string) error {
	var registered struct {
		User struct {
			UserID string `json:"user_id"`
		} `json:"user"`
	}
	err := sc.doJSON("POST", "/api/v1/auth/register", "", map[string]string{
		"email":     email,
		"full_name": fullName,
		"password":  "simulation-pass",
	}, &registered)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", name, err)
	}
	sc.users[name] = registered.User.UserID

	var token struct {
		Token string `json:"jwt_token"`
	}
	err = sc.doJSON("POST", "/api/v1/auth/token", "", map[string]string{
		"email":    email,
		"password": "simulation-pass",
	}, &token)
	if err != nil {
		return fmt.Errorf("failed to get token for %s: %w", name, err)
	}
	sc.tokens[name] = token.Token

	log.Info().Str("account", name).Str("user_id", registered.User.UserID).Msg("Account registered")
	return nil
}

func (sc *simulationClient) createItem(account string, buyNow float64, endAt time.Time) (string, error) {
	var created struct {
		Item struct {
			ItemID string `json:"item_id"`
		} `json:"item"`
	}
	err := sc.doJSON("POST", "/api/v1/items", account, map[string]interface{}{
		"name":           "Vintage mechanical keyboard",
		"description":    "Simulation listing",
		"starting_price": 10.0,
		"step_price":     10.0,
		"buy_now_price":  buyNow,
		"end_at":         endAt.Format(time.RFC3339),
		"auto_extend":    true,
		"allow_unrated":  true,
	}, &created)
	if err != nil {
		return "", err
	}
	return created.Item.ItemID, nil
}

func (sc *simulationClient) placeBid(account, itemID string, maxBid float64) (*bidding.BidOutcome, string, error) {
	var result struct {
		Outcome bidding.BidOutcome `json:"outcome"`
		Message string             `json:"message"`
	}
	err := sc.doJSON("POST", fmt.Sprintf("/api/v1/items/%s/bids", itemID), account,
		map[string]float64{"max_bid": maxBid}, &result)
	if err != nil {
		return nil, "", err
	}
	return &result.Outcome, result.Message, nil
}

func (sc *simulationClient) buyNow(account, itemID string) (*bidding.BidOutcome, error) {
	var result struct {
		Outcome bidding.BidOutcome `json:"outcome"`
	}
	err := sc.doJSON("POST", fmt.Sprintf("/api/v1/items/%s/buy-now", itemID), account, nil, &result)
	if err != nil {
		return nil, err
	}
	return &result.Outcome, nil
}

func (sc *simulationClient) rejectBidder(account, itemID, bidderID string) (*rejection.RejectOutcome, error) {
	var outcome rejection.RejectOutcome
	err := sc.doJSON("POST", fmt.Sprintf("/api/v1/items/%s/rejections", itemID), account,
		map[string]string{"bidder_id": bidderID}, &outcome)
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (sc *simulationClient) getBidHistory(itemID string) ([]map[string]interface{}, error) {
	var result struct {
		Bids []map[string]interface{} `json:"bids"`
	}
	err := sc.doJSON("GET", fmt.Sprintf("/api/v1/items/%s/bids", itemID), "", nil, &result)
	if err != nil {
		return nil, err
	}
	return result.Bids, nil
}

func (sc *simulationClient) getSettlement(itemID string) (map[string]interface{}, error) {
	var stl map[string]interface{}
	err := sc.doJSON("GET", fmt.Sprintf("/api/v1/items/%s/settlement", itemID), "", nil, &stl)
	if err != nil {
		return nil, err
	}
	return stl, nil
}

// main runs a scripted auction lifecycle against an in-process server:
// competing proxy bids, a self-raise, a seller rejection with leaderboard
// recompute and a buy-now that settles the item.
func main() {
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	sc := newSimulationClient()

	accounts := []struct{ name, email, fullName string }{
		{"seller", "seller@example.com", "Sam Seller"},
		{"alice", "alice@example.com", "Alice Archer"},
		{"bob", "bob@example.com", "Bob Brook"},
		{"carol", "carol@example.com", "Carol Chen"},
	}
	for _, a := range accounts {
		if err := sc.registerAccount(a.name, a.email, a.fullName); err != nil {
			log.Fatal().Err(err).Msg("Registration failed")
		}
	}

	itemID, err := sc.createItem("seller", 100, time.Now().Add(30*time.Minute))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create item")
	}
	log.Info().Str("item_id", itemID).Msg("Item listed: starting 10, step 10, buy-now 100")

	// Alice opens the bidding. First bid leads at the starting price.
	outcome, msg, err := sc.placeBid("alice", itemID, 50)
	if err != nil {
		log.Fatal().Err(err).Msg("Alice's opening bid failed")
	}
	log.Info().Float64("current_price", outcome.CurrentPrice).Str("message", msg).
		Msg("Alice bid with ceiling 50")

	// Bob outbids Alice's ceiling. Price lands one step above it.
	outcome, msg, err = sc.placeBid("bob", itemID, 80)
	if err != nil {
		log.Fatal().Err(err).Msg("Bob's bid failed")
	}
	log.Info().Float64("current_price", outcome.CurrentPrice).Str("message", msg).
		Msg("Bob bid with ceiling 80")

	// Alice raises below Bob's ceiling. Bob keeps the lead at Alice's new max.
	outcome, msg, err = sc.placeBid("alice", itemID, 70)
	if err != nil {
		log.Fatal().Err(err).Msg("Alice's raise failed")
	}
	log.Info().Float64("current_price", outcome.CurrentPrice).Str("message", msg).
		Msg("Alice raised her ceiling to 70")

	// Bob raises his own ceiling. Price must not move and no ledger entry is
	// written for a self-raise.
	outcome, msg, err = sc.placeBid("bob", itemID, 90)
	if err != nil {
		log.Fatal().Err(err).Msg("Bob's self-raise failed")
	}
	log.Info().Float64("current_price", outcome.CurrentPrice).Str("message", msg).
		Msg("Bob self-raised to 90")

	// The seller rejects Alice. Her trace is purged and the leaderboard is
	// recomputed from Bob's bid alone.
	rejOutcome, err := sc.rejectBidder("seller", itemID, sc.users["alice"])
	if err != nil {
		log.Fatal().Err(err).Msg("Rejection failed")
	}
	log.Info().Float64("current_price", rejOutcome.CurrentPrice).
		Int("remaining_bids", rejOutcome.RemainingBids).
		Bool("ledger_written", rejOutcome.LedgerWritten).
		Msg("Seller rejected Alice")

	// Carol buys the item outright.
	buyOutcome, err := sc.buyNow("carol", itemID)
	if err != nil {
		log.Fatal().Err(err).Msg("Buy-now failed")
	}
	log.Info().Float64("final_price", buyOutcome.CurrentPrice).
		Bool("sold", buyOutcome.Sold).
		Msg("Carol bought the item at the buy-now price")

	// Replay the ledger and fetch the settlement record.
	bids, err := sc.getBidHistory(itemID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch bid history")
	}

	// Allow the settlement write, which happens after the bid commits, to land.
	time.Sleep(500 * time.Millisecond)
	stl, err := sc.getSettlement(itemID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch settlement")
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Println("AUCTION SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Item: %s\n\nBid ledger (%d entries):\n", itemID, len(bids))
	for i, b := range bids {
		fmt.Printf("  %d. bidder=%v price=%v buy_now=%v\n", i+1, b["bidder_id"], b["price"], b["is_buy_now"])
	}
	fmt.Printf("\nSettlement: id=%v winner=%v price=%v status=%v\n",
		stl["settlement_id"], stl["winner_id"], stl["final_price"], stl["status"])
	fmt.Println(strings.Repeat("=", 70))

	log.Info().Msg("Simulation completed")
}

// startServer initializes and starts the auction API server in-process.
func startServer() error {
	db, err := database.NewDatabase("simulation.db")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	lockRegistry := locks.NewRegistry()

	authService := auth.NewService(db, jwtSecret)
	settingsService := settings.NewService(db)
	reputationService := reputation.NewService(db)
	settlementService := settlement.NewService(db)
	notificationService := notification.NewService(db)
	biddingService := bidding.NewService(
		db, lockRegistry, reputationService, settingsService, settlementService, notificationService)
	rejectionService := rejection.NewService(db, lockRegistry, notificationService)
	catalogService := catalog.NewService(db)
	ledgerService := ledger.NewService(db)

	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	catalogHandlers := catalog.NewGinHandlers(catalogService)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)
	biddingHandlers := bidding.NewGinHandlers(biddingService)
	rejectionHandlers := rejection.NewGinHandlers(rejectionService)
	settlementHandlers := settlement.NewGinHandlers(settlementService)

	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandlers.RegisterHandler())
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		items := v1.Group("/items")
		{
			items.GET("", catalogHandlers.ListItemsHandler())
			items.GET("/:item_id", catalogHandlers.GetItemHandler())
			items.GET("/:item_id/bids", ledgerHandlers.GetBidHistoryHandler())
			items.GET("/:item_id/settlement", settlementHandlers.GetItemSettlementHandler())
		}

		protected := v1.Group("/items")
		protected.Use(middleware.JWTAuth(jwtSecret))
		{
			protected.POST("", catalogHandlers.CreateItemHandler())
			protected.POST("/:item_id/bids", biddingHandlers.PlaceBidHandler())
			protected.POST("/:item_id/buy-now", biddingHandlers.BuyNowHandler())
			protected.POST("/:item_id/rejections", rejectionHandlers.RejectBidderHandler())
			protected.DELETE("/:item_id/rejections/:bidder_id", rejectionHandlers.UnrejectBidderHandler())
		}
	}

	return router.Run(":8080")
}
