package handler

import (
	"go.uber.org/zap"

	"goflare.io/estore"
)

// Handler 將 HTTP 請求轉為 estore.Service 呼叫
type Handler struct {
	svc    estore.Service
	logger *zap.Logger
}

func New(svc estore.Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}
