package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// =============================================================================
// 🔍 检索 API Handlers
// =============================================================================

// retrieveRequest POST /v1/retrieve 请求体
type retrieveRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// errorResponse 统一错误响应
type errorResponse struct {
	Error string `json:"error"`
}

// handleRetrieve 执行一次带会话上下文的检索
func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query is required"})
		return
	}

	result, err := s.engine.Retrieve(r.Context(), req.Query, req.SessionID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// 客户端已断开，写不写都无人收
			w.WriteHeader(statusClientClosedRequest)
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "retrieval failed"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleResetSession 清除指定会话的对话上下文
func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing session id"})
		return
	}

	s.engine.ResetSession(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// statusClientClosedRequest 客户端中途断开（nginx 499 惯例）
const statusClientClosedRequest = 499

// =============================================================================
// 🏥 健康检查与版本 Handlers
// =============================================================================

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz 就绪检查：缓存与数值库缺席属于降级而非未就绪，
// 仅在已配置的外部件失联时报 not ready。
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	ready := true

	if s.retrievalCache != nil {
		if err := s.retrievalCache.Ping(ctx); err != nil {
			checks["cache"] = "unreachable"
			ready = false
		} else {
			checks["cache"] = "ok"
		}
	}
	if s.pool != nil {
		if err := s.pool.Ping(ctx); err != nil {
			checks["database"] = "unreachable"
			ready = false
		} else {
			checks["database"] = "ok"
		}
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not ready"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": checks})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})
}

// writeJSON 序列化响应体并设置状态码
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
