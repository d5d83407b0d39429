package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/memevote/internal/memes"
	"github.com/MarcoPoloResearchLab/memevote/internal/pinning"
	"github.com/MarcoPoloResearchLab/memevote/internal/solana"
	"github.com/MarcoPoloResearchLab/memevote/internal/trade"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	opSubmitMeme         = "submit_meme"
	opConfirmCreation    = "confirm_creation"
	opUpvote             = "upvote"
	opConfirmUpvote      = "confirm_upvote"
	opListImages         = "list_images"
	opPrepareIPFS        = "prepare_ipfs"
	opBalance            = "balance"
	opConfirmTransaction = "confirm_transaction"
	opListSubmissions    = "list_submissions"
	opGetSubmission      = "get_submission"
	opHealth             = "health"

	defaultTokenSymbol = "MEME"
	maxTokenNameLength = 32
)

func (h *httpHandler) handleSubmitMeme(c *gin.Context) {
	var request submitMemeRequest
	if err := bindStrictJSON(c, &request); err != nil {
		h.respondError(c, opSubmitMeme, newValidationError(describeBindError(&request, err), err))
		return
	}
	memo, err := memes.NewMemo(request.Memo)
	if err != nil {
		h.respondError(c, opSubmitMeme, classifyError(err, ""))
		return
	}
	userPubKey := strings.TrimSpace(request.UserPubKey)
	if userPubKey == "" {
		h.respondError(c, opSubmitMeme, newValidationError("Missing required fields: userPubKey", nil))
		return
	}

	mint, err := h.newKeypair()
	if err != nil {
		h.respondError(c, opSubmitMeme, apiError{kind: kindInternal, message: "Failed to generate mint address", cause: err})
		return
	}

	ctx := c.Request.Context()
	submission, err := h.submissions.CreatePending(ctx, memo, userPubKey)
	if err != nil {
		h.respondError(c, opSubmitMeme, classifyError(err, "Failed to store submission"))
		return
	}

	transaction, err := h.trade.BuildCreate(ctx, trade.CreateRequest{
		Payer:     userPubKey,
		Mint:      mint.PublicKey,
		Metadata:  tokenMetadata(request, memo),
		AmountSOL: h.settings.CreateAmountSOL,
	})
	h.metrics.observeTrade(trade.ActionCreate, err)
	if err != nil {
		h.respondError(c, opSubmitMeme, classifyError(err, "Failed to create token transaction"))
		return
	}

	h.metrics.observeSubmission()
	h.logger.Info("meme submitted",
		zap.String("submission_id", submission.ID),
		zap.String("mint", mint.PublicKey))
	c.JSON(http.StatusOK, submitMemeResponse{
		Message:       "Meme submitted, sign the transaction to mint the token",
		SubmissionID:  submission.ID,
		TxBase64:      transaction.Base64(),
		Mint:          mint.PublicKey,
		MintSecretKey: mint.SecretKeyBase58(),
	})
}

func tokenMetadata(request submitMemeRequest, memo memes.Memo) trade.TokenMetadata {
	name := strings.TrimSpace(request.Name)
	if name == "" {
		name = strings.TrimSpace(truncateRunes(memo.String(), maxTokenNameLength))
	}
	symbol := strings.ToUpper(strings.TrimSpace(request.Symbol))
	if symbol == "" {
		symbol = defaultTokenSymbol
	}
	return trade.TokenMetadata{
		Name:   name,
		Symbol: symbol,
		URI:    strings.TrimSpace(request.MetadataURI),
	}
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	return string([]rune(value)[:limit])
}

func (h *httpHandler) handleConfirmCreation(c *gin.Context) {
	var request confirmCreationRequest
	if err := bindStrictJSON(c, &request); err != nil {
		h.respondError(c, opConfirmCreation, newValidationError(describeBindError(&request, err), err))
		return
	}
	submissionID, err := memes.NewSubmissionID(request.SubmissionID)
	if err != nil {
		h.respondError(c, opConfirmCreation, classifyError(err, ""))
		return
	}

	_, err = h.submissions.ConfirmCreation(c.Request.Context(), memes.CreationConfirmation{
		SubmissionID: submissionID,
		TxSignature:  request.TxSignature,
		MintAddress:  request.MintAddress,
		Memo:         request.Memo,
	})
	if err != nil {
		h.respondError(c, opConfirmCreation, classifyError(err, "Failed to activate submission"))
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Meme is now active"})
}

func (h *httpHandler) handleUpvote(c *gin.Context) {
	var request upvoteRequest
	if err := bindStrictJSON(c, &request); err != nil {
		h.respondError(c, opUpvote, newValidationError(describeBindError(&request, err), err))
		return
	}
	submissionID, err := memes.NewSubmissionID(request.SubmissionID)
	if err != nil {
		h.respondError(c, opUpvote, classifyError(err, ""))
		return
	}
	userPubKey := strings.TrimSpace(request.UserPubKey)
	if userPubKey == "" {
		h.respondError(c, opUpvote, newValidationError("Missing required fields: userPubKey", nil))
		return
	}

	ctx := c.Request.Context()
	target, err := h.submissions.UpvoteTarget(ctx, submissionID)
	if err != nil {
		h.respondError(c, opUpvote, classifyError(err, "Failed to load submission"))
		return
	}

	transaction, err := h.trade.BuildBuy(ctx, trade.BuyRequest{
		Payer:     userPubKey,
		Mint:      *target.TokenMint,
		AmountSOL: h.settings.UpvoteAmountSOL,
	})
	h.metrics.observeTrade(trade.ActionBuy, err)
	if err != nil {
		h.respondError(c, opUpvote, classifyError(err, "Failed to create upvote transaction"))
		return
	}
	c.JSON(http.StatusOK, upvoteResponse{
		Message:  "Upvote transaction created",
		TxBase64: transaction.Base64(),
	})
}

func (h *httpHandler) handleConfirmUpvote(c *gin.Context) {
	var request confirmUpvoteRequest
	if err := bindStrictJSON(c, &request); err != nil {
		h.respondError(c, opConfirmUpvote, newValidationError(describeBindError(&request, err), err))
		return
	}
	submissionID, err := memes.NewSubmissionID(request.SubmissionID)
	if err != nil {
		h.respondError(c, opConfirmUpvote, classifyError(err, ""))
		return
	}

	_, err = h.submissions.RecordUpvote(c.Request.Context(), memes.UpvoteConfirmation{
		SubmissionID: submissionID,
		UserPubKey:   request.UserPubKey,
		TxSignature:  request.TxSignature,
	})
	if err != nil {
		h.respondError(c, opConfirmUpvote, classifyError(err, "Failed to record upvote"))
		return
	}
	h.metrics.observeUpvote()
	c.JSON(http.StatusOK, messageResponse{Message: "Upvote recorded"})
}

func (h *httpHandler) handleListImages(c *gin.Context) {
	names, err := h.images.ListPNG()
	if err != nil {
		h.respondError(c, opListImages, apiError{kind: kindInternal, message: "Failed to read image directory", cause: err})
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": names})
}

func (h *httpHandler) handlePrepareIPFS(c *gin.Context) {
	var request prepareIPFSRequest
	if err := bindStrictJSON(c, &request); err != nil {
		h.respondError(c, opPrepareIPFS, newValidationError(describeBindError(&request, err), err))
		return
	}

	image, err := h.images.Open(request.ImageName)
	if err != nil {
		failure := classifyError(err, "Failed to read image")
		if failure.kind == kindExternalService {
			failure.kind = kindInternal
		}
		h.respondError(c, opPrepareIPFS, failure)
		return
	}
	defer image.Close()

	metadataURI, err := h.pinning.Pin(c.Request.Context(), pinning.Upload{
		Name:      request.Name,
		Symbol:    request.Symbol,
		ImageName: request.ImageName,
		Image:     image,
	})
	if err != nil {
		h.respondError(c, opPrepareIPFS, classifyError(err, "Failed to upload to IPFS"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"metadataUri": metadataURI})
}

func (h *httpHandler) handleBalance(c *gin.Context) {
	pubkey := strings.TrimSpace(c.Query("pubkey"))
	if pubkey == "" {
		h.respondError(c, opBalance, newValidationError("Missing required fields: pubkey", nil))
		return
	}
	lamports, err := h.chain.GetBalance(c.Request.Context(), pubkey)
	if err != nil {
		h.respondError(c, opBalance, classifyError(err, "Failed to fetch balance"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": json.Number(solana.LamportsToSOL(lamports).String())})
}

func (h *httpHandler) handleConfirmTransaction(c *gin.Context) {
	var request confirmTransactionRequest
	if err := bindStrictJSON(c, &request); err != nil {
		h.respondError(c, opConfirmTransaction, newValidationError(describeBindError(&request, err), err))
		return
	}
	signature := strings.TrimSpace(request.Signature)
	if signature == "" {
		h.respondError(c, opConfirmTransaction, newValidationError("Missing required fields: signature", nil))
		return
	}

	if err := h.chain.WaitForFinalized(c.Request.Context(), signature, h.settings.ConfirmTimeout); err != nil {
		h.respondError(c, opConfirmTransaction, classifyError(err, "Failed to confirm transaction"))
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Transaction confirmed"})
}

func (h *httpHandler) handleListSubmissions(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.respondError(c, opListSubmissions, newValidationError("Invalid limit", err))
			return
		}
		limit = parsed
	}

	summaries, err := h.submissions.ListActive(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, opListSubmissions, classifyError(err, "Failed to list submissions"))
		return
	}
	payload := make([]submissionPayload, 0, len(summaries))
	for _, summary := range summaries {
		payload = append(payload, newSubmissionPayload(summary))
	}
	c.JSON(http.StatusOK, gin.H{"submissions": payload})
}

func (h *httpHandler) handleGetSubmission(c *gin.Context) {
	submissionID, err := memes.NewSubmissionID(c.Param("id"))
	if err != nil {
		h.respondError(c, opGetSubmission, classifyError(err, ""))
		return
	}
	summary, err := h.submissions.Summary(c.Request.Context(), submissionID)
	if err != nil {
		h.respondError(c, opGetSubmission, classifyError(err, "Failed to load submission"))
		return
	}
	c.JSON(http.StatusOK, newSubmissionPayload(summary))
}

func newSubmissionPayload(summary memes.SubmissionSummary) submissionPayload {
	return submissionPayload{
		ID:         summary.ID,
		Memo:       summary.Memo,
		Status:     string(summary.Status),
		TokenMint:  summary.TokenMint,
		CreationTx: summary.CreationTx,
		Upvotes:    summary.UpvoteCount,
		CreatedAt:  summary.CreatedAt.Unix(),
	}
}

func (h *httpHandler) handlePublicConfig(c *gin.Context) {
	c.JSON(http.StatusOK, publicConfigResponse{
		JackpotWallet:   h.settings.JackpotWallet,
		UpvoteAmountSOL: h.settings.UpvoteAmountSOL,
	})
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	if err := h.submissions.Ping(c.Request.Context()); err != nil {
		h.respondError(c, opHealth, apiError{kind: kindExternalService, message: "Store unavailable", cause: err})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
