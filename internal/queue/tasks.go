package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"pdf-chat-platform/internal/logger"
	"pdf-chat-platform/services"
)

const TaskIndexPDF = "pdf:index"

type IndexPDFPayload struct {
	Owner    string `json:"owner"`
	Filename string `json:"filename"`
}

func NewIndexPDFTask(owner, filename string) (*asynq.Task, error) {
	payload, err := json.Marshal(IndexPDFPayload{Owner: owner, Filename: filename})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskIndexPDF,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// Client enqueues indexing jobs. It satisfies services.IndexEnqueuer.
type Client struct {
	client *asynq.Client
}

func NewClient(redisAddr, password string, db int) *Client {
	return &Client{client: asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})}
}

func (c *Client) EnqueueIndex(ctx context.Context, owner, filename string) error {
	task, err := NewIndexPDFTask(owner, filename)
	if err != nil {
		return err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", TaskIndexPDF, err)
	}
	logger.Info("queued index task", "id", info.ID, "owner", owner, "filename", filename)
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// TaskProcessor runs queued jobs inside the worker binary.
type TaskProcessor struct {
	pdfService *services.PDFService
}

func NewTaskProcessor(pdfService *services.PDFService) *TaskProcessor {
	return &TaskProcessor{pdfService: pdfService}
}

func (p *TaskProcessor) IndexPDF(ctx context.Context, t *asynq.Task) error {
	var payload IndexPDFPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("indexing queued pdf", "owner", payload.Owner, "filename", payload.Filename)
	if err := p.pdfService.ProcessStored(ctx, payload.Owner, payload.Filename); err != nil {
		logger.Error("queued indexing failed", "owner", payload.Owner, "filename", payload.Filename, "error", err)
		return err
	}
	return nil
}
