package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/fitfeed-app/fitfeed-go/internal/constant"
	"github.com/fitfeed-app/fitfeed-go/internal/model"
	"github.com/fitfeed-app/fitfeed-go/internal/observability"
	"github.com/knadh/koanf/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CommentRepository talks to the FitFeed comment endpoints. It is a thin
// transport layer: no list state, no optimistic logic, just requests and
// decoded responses.
type CommentRepository struct {
	Log        *zap.Logger
	Config     *koanf.Koanf
	HttpClient *http.Client
	BaseURL    string
	Token      string
	Tracer     trace.Tracer
}

func NewCommentRepository(zap *zap.Logger, koanf *koanf.Koanf, httpClient *http.Client) *CommentRepository {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &CommentRepository{
		Log:        zap,
		Config:     koanf,
		HttpClient: httpClient,
		BaseURL:    koanf.String("FITFEED_BASE_URL"),
		Token:      koanf.String("FITFEED_ACCESS_TOKEN"),
		Tracer:     otel.Tracer("fitfeed/repository"),
	}
}

func (repository *CommentRepository) ListComments(ctx context.Context, resourceId int64, page int, limit int) (model.CommentListResponse, error) {
	response := model.CommentListResponse{}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))
	path := fmt.Sprintf("/resource/%d/comments?%s", resourceId, query.Encode())

	err := repository.doRequest(ctx, http.MethodGet, path, nil, &response)
	if err != nil {
		return response, err
	}

	return response, nil
}

func (repository *CommentRepository) ListReplies(ctx context.Context, commentId int64, cursor *int64, limit int) (model.ReplyListResponse, error) {
	response := model.ReplyListResponse{}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if cursor != nil {
		query.Set("cursor", strconv.FormatInt(*cursor, 10))
	}
	path := fmt.Sprintf("/comments/%d/replies?%s", commentId, query.Encode())

	err := repository.doRequest(ctx, http.MethodGet, path, nil, &response)
	if err != nil {
		return response, err
	}

	return response, nil
}

func (repository *CommentRepository) CreateComment(ctx context.Context, resourceId int64, content string, parentCommentId *int64) (model.Comment, error) {
	request := model.CreateCommentRequest{
		Content:         content,
		ParentCommentId: parentCommentId,
	}

	envelope := model.CommentEnvelope{}
	path := fmt.Sprintf("/resource/%d/comments", resourceId)

	err := repository.doRequest(ctx, http.MethodPost, path, request, &envelope)
	if err != nil {
		return model.Comment{}, err
	}

	return envelope.Comment.ToComment(), nil
}

func (repository *CommentRepository) UpdateComment(ctx context.Context, commentId int64, content string) (model.Comment, error) {
	request := model.UpdateCommentRequest{
		Content: content,
	}

	envelope := model.CommentEnvelope{}
	path := fmt.Sprintf("/comments/%d", commentId)

	err := repository.doRequest(ctx, http.MethodPut, path, request, &envelope)
	if err != nil {
		return model.Comment{}, err
	}

	return envelope.Comment.ToComment(), nil
}

func (repository *CommentRepository) DeleteComment(ctx context.Context, commentId int64) error {
	path := fmt.Sprintf("/comments/%d", commentId)
	return repository.doRequest(ctx, http.MethodDelete, path, nil, nil)
}

func (repository *CommentRepository) ToggleLike(ctx context.Context, commentId int64) (model.LikeResponse, error) {
	response := model.LikeResponse{}
	path := fmt.Sprintf("/comments/%d/like", commentId)

	err := repository.doRequest(ctx, http.MethodPost, path, nil, &response)
	if err != nil {
		return response, err
	}

	return response, nil
}

type errorEnvelope struct {
	Error model.ApiError `json:"error"`
}

func (repository *CommentRepository) doRequest(ctx context.Context, method string, path string, body interface{}, result interface{}) error {
	ctx, span := repository.Tracer.Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	var reqBody io.Reader
	if body != nil {
		b, err := sonic.Marshal(body)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, repository.BaseURL+path, reqBody)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if repository.Token != "" {
		req.Header.Set("Authorization", "Bearer "+repository.Token)
	}

	resp, err := repository.HttpClient.Do(req)
	if err != nil {
		observability.WithContext(ctx, repository.Log).Warn("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := repository.decodeError(resp.StatusCode, respBody)
		observability.WithContext(ctx, repository.Log).Warn("request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code),
		)
		span.SetStatus(codes.Error, apiErr.Error())
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		err = sonic.Unmarshal(respBody, result)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	return nil
}

func (repository *CommentRepository) decodeError(statusCode int, body []byte) *model.ApiError {
	envelope := errorEnvelope{}
	if err := sonic.Unmarshal(body, &envelope); err == nil && envelope.Error.Code != "" {
		envelope.Error.StatusCode = statusCode
		return &envelope.Error
	}

	code := constant.ERR_TRANSPORT_ERROR_CODE
	switch statusCode {
	case http.StatusNotFound:
		code = constant.ERR_NOT_FOUND_ERROR
	case http.StatusUnauthorized:
		code = constant.ERR_UNATHORIZED_ERROR
	case http.StatusInternalServerError:
		code = constant.ERR_INTERNAL_SERVER_ERROR_CODE
	}

	return &model.ApiError{
		StatusCode: statusCode,
		Code:       code,
	}
}
