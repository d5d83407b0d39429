package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/memevote/internal/memes"
	"github.com/MarcoPoloResearchLab/memevote/internal/pinning"
	"github.com/MarcoPoloResearchLab/memevote/internal/solana"
	"github.com/MarcoPoloResearchLab/memevote/internal/trade"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfirmTimeout = 60 * time.Second

var (
	errMissingSubmissions  = errors.New("submission store dependency required")
	errMissingChain        = errors.New("chain client dependency required")
	errMissingTrade        = errors.New("transaction builder dependency required")
	errMissingPinning      = errors.New("pinning dependency required")
	errMissingImages       = errors.New("image catalog dependency required")
	errInvalidUpvoteAmount = errors.New("upvote amount must be positive")
)

// SubmissionStore persists submissions and upvotes.
type SubmissionStore interface {
	CreatePending(ctx context.Context, memo memes.Memo, userPubKey string) (memes.Submission, error)
	ConfirmCreation(ctx context.Context, confirmation memes.CreationConfirmation) (memes.Submission, error)
	UpvoteTarget(ctx context.Context, id memes.SubmissionID) (memes.Submission, error)
	RecordUpvote(ctx context.Context, confirmation memes.UpvoteConfirmation) (memes.Upvote, error)
	ListActive(ctx context.Context, limit int) ([]memes.SubmissionSummary, error)
	Summary(ctx context.Context, id memes.SubmissionID) (memes.SubmissionSummary, error)
	Ping(ctx context.Context) error
}

// ChainClient reads balances and transaction outcomes from the blockchain RPC.
type ChainClient interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
	WaitForFinalized(ctx context.Context, signature string, timeout time.Duration) error
}

// TransactionBuilder produces unsigned create and buy transactions.
type TransactionBuilder interface {
	BuildCreate(ctx context.Context, request trade.CreateRequest) (trade.Transaction, error)
	BuildBuy(ctx context.Context, request trade.BuyRequest) (trade.Transaction, error)
}

// MetadataPinner uploads token images and returns their metadata URI.
type MetadataPinner interface {
	Pin(ctx context.Context, upload pinning.Upload) (string, error)
}

// ImageCatalog lists and opens local token images.
type ImageCatalog interface {
	ListPNG() ([]string, error)
	Open(name string) (io.ReadCloser, error)
}

// Settings holds the request-independent values handlers read.
type Settings struct {
	JackpotWallet   string
	UpvoteAmountSOL float64
	CreateAmountSOL float64
	ConfirmTimeout  time.Duration
	StaticDir       string
}

type Dependencies struct {
	Submissions    SubmissionStore
	Chain          ChainClient
	Trade          TransactionBuilder
	Pinning        MetadataPinner
	Images         ImageCatalog
	NewMintKeypair func() (solana.Keypair, error)
	Metrics        *Metrics
	Settings       Settings
	Logger         *zap.Logger
}

// NewHTTPHandler wires the gateway routes onto a gin engine.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Submissions == nil {
		return nil, errMissingSubmissions
	}
	if deps.Chain == nil {
		return nil, errMissingChain
	}
	if deps.Trade == nil {
		return nil, errMissingTrade
	}
	if deps.Pinning == nil {
		return nil, errMissingPinning
	}
	if deps.Images == nil {
		return nil, errMissingImages
	}
	if deps.Settings.UpvoteAmountSOL <= 0 {
		return nil, errInvalidUpvoteAmount
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	newKeypair := deps.NewMintKeypair
	if newKeypair == nil {
		newKeypair = solana.NewKeypair
	}
	settings := deps.Settings
	if settings.ConfirmTimeout <= 0 {
		settings.ConfirmTimeout = defaultConfirmTimeout
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}
	router.Use(corsMiddleware())

	handler := &httpHandler{
		submissions: deps.Submissions,
		chain:       deps.Chain,
		trade:       deps.Trade,
		pinning:     deps.Pinning,
		images:      deps.Images,
		newKeypair:  newKeypair,
		metrics:     deps.Metrics,
		settings:    settings,
		logger:      logger,
	}

	router.POST("/submit-meme", handler.handleSubmitMeme)
	router.POST("/confirm-creation", handler.handleConfirmCreation)
	router.POST("/upvote", handler.handleUpvote)
	router.POST("/confirm-upvote", handler.handleConfirmUpvote)
	router.GET("/list-images", handler.handleListImages)
	router.POST("/prepare-ipfs", handler.handlePrepareIPFS)
	router.GET("/balance", handler.handleBalance)
	router.POST("/confirm-transaction", handler.handleConfirmTransaction)

	router.GET("/submissions", handler.handleListSubmissions)
	router.GET("/submissions/:id", handler.handleGetSubmission)
	router.GET("/config", handler.handlePublicConfig)
	router.GET("/healthz", handler.handleHealth)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	router.NoRoute(handler.serveStatic)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	})
}

type httpHandler struct {
	submissions SubmissionStore
	chain       ChainClient
	trade       TransactionBuilder
	pinning     MetadataPinner
	images      ImageCatalog
	newKeypair  func() (solana.Keypair, error)
	metrics     *Metrics
	settings    Settings
	logger      *zap.Logger
}
