package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const maxRequestBodyBytes = 1 << 20

type submitMemeRequest struct {
	Memo        string `json:"memo" binding:"required,min=10"`
	UserPubKey  string `json:"userPubKey" binding:"required"`
	Name        string `json:"name" binding:"omitempty,max=32"`
	Symbol      string `json:"symbol" binding:"omitempty,max=10"`
	MetadataURI string `json:"metadataUri" binding:"omitempty,max=200"`
}

type submitMemeResponse struct {
	Message       string `json:"message"`
	SubmissionID  string `json:"submissionId"`
	TxBase64      string `json:"txBase64"`
	Mint          string `json:"mint"`
	MintSecretKey string `json:"mintSecretKey"`
}

type confirmCreationRequest struct {
	SubmissionID string  `json:"submissionId" binding:"required"`
	TxSignature  string  `json:"txSignature" binding:"required"`
	MintAddress  string  `json:"mintAddress" binding:"required"`
	Memo         *string `json:"memo"`
}

type upvoteRequest struct {
	SubmissionID string `json:"submissionId" binding:"required"`
	UserPubKey   string `json:"userPubKey" binding:"required"`
}

type upvoteResponse struct {
	Message  string `json:"message"`
	TxBase64 string `json:"txBase64"`
}

type confirmUpvoteRequest struct {
	SubmissionID string `json:"submissionId" binding:"required"`
	UserPubKey   string `json:"userPubKey" binding:"required"`
	TxSignature  string `json:"txSignature" binding:"required"`
}

type prepareIPFSRequest struct {
	Name      string `json:"name" binding:"required"`
	Symbol    string `json:"symbol" binding:"required"`
	ImageName string `json:"imagename" binding:"required"`
}

type confirmTransactionRequest struct {
	Signature string `json:"signature" binding:"required"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type submissionPayload struct {
	ID         string  `json:"id"`
	Memo       string  `json:"memo"`
	Status     string  `json:"status"`
	TokenMint  *string `json:"tokenMint"`
	CreationTx *string `json:"creationTx"`
	Upvotes    int64   `json:"upvotes"`
	CreatedAt  int64   `json:"createdAt"`
}

type publicConfigResponse struct {
	JackpotWallet   string  `json:"jackpotWallet"`
	UpvoteAmountSOL float64 `json:"upvoteAmountSol"`
}

var errEmptyBody = errors.New("request body is empty")

// bindStrictJSON decodes the body into target, rejecting unknown fields and
// trailing data, then runs the binding tag validation.
func bindStrictJSON(c *gin.Context, target any) error {
	decoder := json.NewDecoder(io.LimitReader(c.Request.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	if decoder.More() {
		return errors.New("unexpected data after JSON body")
	}
	return binding.Validator.ValidateStruct(target)
}

// describeBindError renders a client-facing message for a decode or
// validation failure, naming fields by their JSON keys.
func describeBindError(target any, err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		missing := make([]string, 0, len(validationErrs))
		invalid := make([]string, 0, len(validationErrs))
		for _, fieldErr := range validationErrs {
			name := jsonFieldName(target, fieldErr.StructField())
			if fieldErr.Tag() == "required" {
				missing = append(missing, name)
				continue
			}
			invalid = append(invalid, fmt.Sprintf("%s (%s=%s)", name, fieldErr.Tag(), fieldErr.Param()))
		}
		if len(missing) > 0 {
			return "Missing required fields: " + strings.Join(missing, ", ")
		}
		return "Invalid fields: " + strings.Join(invalid, ", ")
	}
	if errors.Is(err, errEmptyBody) {
		return "Missing required fields"
	}
	return "Invalid request body"
}

func jsonFieldName(target any, structField string) string {
	targetType := reflect.TypeOf(target)
	for targetType != nil && targetType.Kind() == reflect.Pointer {
		targetType = targetType.Elem()
	}
	if targetType == nil || targetType.Kind() != reflect.Struct {
		return structField
	}
	field, ok := targetType.FieldByName(structField)
	if !ok {
		return structField
	}
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return structField
	}
	return name
}
