package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/memevote/internal/images"
	"github.com/MarcoPoloResearchLab/memevote/internal/memes"
	"github.com/MarcoPoloResearchLab/memevote/internal/pinning"
	"github.com/MarcoPoloResearchLab/memevote/internal/solana"
	"github.com/MarcoPoloResearchLab/memevote/internal/trade"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const testMintAddress = "So11111111111111111111111111111111111111112"

type stubSubmissionStore struct {
	writes       int
	pending      []memes.Submission
	confirmed    []memes.CreationConfirmation
	upvotes      []memes.UpvoteConfirmation
	target       memes.Submission
	targetErr    error
	createErr    error
	summaries    []memes.SubmissionSummary
	summaryErr   error
	pingErr      error
	requestedIDs []memes.SubmissionID
}

func (s *stubSubmissionStore) CreatePending(_ context.Context, memo memes.Memo, userPubKey string) (memes.Submission, error) {
	if s.createErr != nil {
		return memes.Submission{}, s.createErr
	}
	s.writes++
	submission := memes.Submission{ID: "sub-1", Memo: memo.String(), Status: memes.StatusPending, UserPubKey: &userPubKey}
	s.pending = append(s.pending, submission)
	return submission, nil
}

func (s *stubSubmissionStore) ConfirmCreation(_ context.Context, confirmation memes.CreationConfirmation) (memes.Submission, error) {
	s.writes++
	s.confirmed = append(s.confirmed, confirmation)
	return memes.Submission{ID: confirmation.SubmissionID.String(), Status: memes.StatusActive}, nil
}

func (s *stubSubmissionStore) UpvoteTarget(_ context.Context, id memes.SubmissionID) (memes.Submission, error) {
	s.requestedIDs = append(s.requestedIDs, id)
	if s.targetErr != nil {
		return memes.Submission{}, s.targetErr
	}
	return s.target, nil
}

func (s *stubSubmissionStore) RecordUpvote(_ context.Context, confirmation memes.UpvoteConfirmation) (memes.Upvote, error) {
	s.writes++
	s.upvotes = append(s.upvotes, confirmation)
	return memes.Upvote{ID: int64(len(s.upvotes)), SubmissionID: confirmation.SubmissionID.String()}, nil
}

func (s *stubSubmissionStore) ListActive(context.Context, int) ([]memes.SubmissionSummary, error) {
	return s.summaries, s.summaryErr
}

func (s *stubSubmissionStore) Summary(_ context.Context, id memes.SubmissionID) (memes.SubmissionSummary, error) {
	if s.summaryErr != nil {
		return memes.SubmissionSummary{}, s.summaryErr
	}
	for _, summary := range s.summaries {
		if summary.ID == id.String() {
			return summary, nil
		}
	}
	return memes.SubmissionSummary{}, memes.ErrSubmissionNotFound
}

func (s *stubSubmissionStore) Ping(context.Context) error {
	return s.pingErr
}

type stubChainClient struct {
	lamports   uint64
	balanceErr error
	waitErr    error
	addresses  []string
	timeouts   []time.Duration
}

func (s *stubChainClient) GetBalance(_ context.Context, address string) (uint64, error) {
	s.addresses = append(s.addresses, address)
	return s.lamports, s.balanceErr
}

func (s *stubChainClient) WaitForFinalized(_ context.Context, _ string, timeout time.Duration) error {
	s.timeouts = append(s.timeouts, timeout)
	return s.waitErr
}

type stubTransactionBuilder struct {
	creates []trade.CreateRequest
	buys    []trade.BuyRequest
	err     error
}

func (s *stubTransactionBuilder) BuildCreate(_ context.Context, request trade.CreateRequest) (trade.Transaction, error) {
	s.creates = append(s.creates, request)
	if s.err != nil {
		return nil, s.err
	}
	return trade.Transaction("create-tx"), nil
}

func (s *stubTransactionBuilder) BuildBuy(_ context.Context, request trade.BuyRequest) (trade.Transaction, error) {
	s.buys = append(s.buys, request)
	if s.err != nil {
		return nil, s.err
	}
	return trade.Transaction("buy-tx"), nil
}

func (s *stubTransactionBuilder) calls() int {
	return len(s.creates) + len(s.buys)
}

type stubPinner struct {
	uploads []pinning.Upload
	content []string
	uri     string
	err     error
}

func (s *stubPinner) Pin(_ context.Context, upload pinning.Upload) (string, error) {
	s.uploads = append(s.uploads, upload)
	data, _ := io.ReadAll(upload.Image)
	s.content = append(s.content, string(data))
	return s.uri, s.err
}

type stubImageCatalog struct {
	files   map[string]string
	listErr error
}

func (s *stubImageCatalog) ListPNG() ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	return names, nil
}

func (s *stubImageCatalog) Open(name string) (io.ReadCloser, error) {
	content, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", images.ErrImageNotFound, name)
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

type testDependencies struct {
	store   *stubSubmissionStore
	chain   *stubChainClient
	trade   *stubTransactionBuilder
	pinner  *stubPinner
	images  *stubImageCatalog
	metrics *Metrics
	deps    Dependencies
}

func newTestDependencies() *testDependencies {
	fixture := &testDependencies{
		store:   &stubSubmissionStore{},
		chain:   &stubChainClient{},
		trade:   &stubTransactionBuilder{},
		pinner:  &stubPinner{uri: "https://ipfs.io/ipfs/QmMeta"},
		images:  &stubImageCatalog{files: map[string]string{"frog.png": "png-bytes"}},
		metrics: NewMetrics(),
	}
	fixture.deps = Dependencies{
		Submissions: fixture.store,
		Chain:       fixture.chain,
		Trade:       fixture.trade,
		Pinning:     fixture.pinner,
		Images:      fixture.images,
		NewMintKeypair: func() (solana.Keypair, error) {
			return solana.Keypair{PublicKey: testMintAddress, PrivateKey: make([]byte, 64)}, nil
		},
		Metrics: fixture.metrics,
		Settings: Settings{
			JackpotWallet:   "11111111111111111111111111111111",
			UpvoteAmountSOL: 0.01,
			ConfirmTimeout:  time.Minute,
		},
		Logger: zap.NewNop(),
	}
	return fixture
}

func (f *testDependencies) handler(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	handler, err := NewHTTPHandler(f.deps)
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return handler
}

func performRequest(handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, target, reader)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}
