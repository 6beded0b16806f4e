// Package gateway serves the live judge sessions over websocket.
package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/AdamBeresnev/racetime/internal/apperrors"
	"github.com/AdamBeresnev/racetime/internal/metrics"
	"github.com/AdamBeresnev/racetime/internal/pubsub"
	"github.com/AdamBeresnev/racetime/internal/race"
	"github.com/AdamBeresnev/racetime/internal/service"
	"github.com/go-chi/chi/v5"
	"golang.org/x/net/websocket"
)

const (
	maxMessageBytes        = 64 * 1024
	maxDecodeErrorsPerConn = 3
)

// TokenValidator resolves a bearer token to the judge it was issued to.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*race.Judge, error)
}

type TeamLookup interface {
	GetTeamByJudge(ctx context.Context, judgeID int64) (*race.Team, error)
}

type CompetitionReader interface {
	Snapshot(ctx context.Context, competitionID int64) (*race.Snapshot, error)
}

type Submitter interface {
	SubmitSingle(ctx context.Context, judge *race.Judge, teamID int64, in service.RecordInput) (*service.SubmitResult, error)
	SubmitBatch(ctx context.Context, judge *race.Judge, teamID int64, inputs []service.RecordInput) (*service.BatchResult, error)
	MaxRecords() int
}

type Handler struct {
	tokens       TokenValidator
	teams        TeamLookup
	competitions CompetitionReader
	submissions  Submitter
	broker       pubsub.Broker

	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	draining bool
}

func NewHandler(tokens TokenValidator, teams TeamLookup, competitions CompetitionReader, submissions Submitter, broker pubsub.Broker) *Handler {
	return &Handler{
		tokens:       tokens,
		teams:        teams,
		competitions: competitions,
		submissions:  submissions,
		broker:       broker,
		conns:        make(map[*websocket.Conn]struct{}),
	}
}

// CloseSessions closes every open judge connection and refuses sessions that finish their
// handshake afterwards. It is meant to run as an http.Server shutdown hook, since
// Shutdown does not wait on or close hijacked connections.
func (h *Handler) CloseSessions() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.draining = true
	for conn := range h.conns {
		_ = conn.Close()
	}
	if n := len(h.conns); n > 0 {
		slog.Info("closing judge sessions", "count", n)
	}
}

func (h *Handler) track(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.conns[conn] = struct{}{}
	return true
}

func (h *Handler) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

func (h *Handler) isDraining() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.draining
}

// handshake is everything resolved about a judge before the connection is upgraded.
// competition is filled in after the session's subscriptions are in place.
type handshake struct {
	judge       *race.Judge
	team        *race.Team
	competition *race.Snapshot
}

// ServeHTTP authenticates the judge and then upgrades. Any handshake failure answers a bare
// 403; the reason is only logged.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	hs, err := h.authenticate(r)
	if err != nil {
		reject(w, r, err)
		return
	}

	judgeSub, err := h.broker.Subscribe(pubsub.JudgeTopic(hs.judge.ID))
	if err != nil {
		reject(w, r, fmt.Errorf("subscribe judge topic: %w", err))
		return
	}
	defer judgeSub.Close()

	competitionSub, err := h.broker.Subscribe(pubsub.CompetitionTopic(hs.judge.CompetitionID))
	if err != nil {
		reject(w, r, fmt.Errorf("subscribe competition topic: %w", err))
		return
	}
	defer competitionSub.Close()

	// The snapshot is read only once both subscriptions exist, so a transition committed
	// during the handshake is either in the snapshot or queued on competitionSub.
	hs.competition, err = h.competitions.Snapshot(r.Context(), hs.judge.CompetitionID)
	if err != nil {
		reject(w, r, err)
		return
	}

	server := websocket.Server{
		Handler: func(conn *websocket.Conn) {
			conn.MaxPayloadBytes = maxMessageBytes
			h.serve(conn, hs, judgeSub, competitionSub)
		},
	}
	server.ServeHTTP(w, r)
}

func (h *Handler) authenticate(r *http.Request) (*handshake, error) {
	ctx := r.Context()

	claimedID, err := strconv.ParseInt(chi.URLParam(r, "judgeID"), 10, 64)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, "judge id is not a number", err)
	}

	judge, err := h.tokens.Validate(ctx, tokenFromRequest(r))
	if err != nil {
		return nil, err
	}
	if judge.ID != claimedID {
		return nil, apperrors.New(apperrors.CodeAuthorization, fmt.Sprintf("token belongs to judge %d, not %d", judge.ID, claimedID))
	}

	team, err := h.teams.GetTeamByJudge(ctx, judge.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.CodeAuthorization, "judge has no assigned team")
		}
		return nil, apperrors.Persistence("load judge team", err)
	}

	return &handshake{judge: judge, team: team}, nil
}

func tokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	return strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
}

func reject(w http.ResponseWriter, r *http.Request, err error) {
	metrics.RecordRejectedHandshake()
	slog.Warn("judge handshake rejected",
		"path", r.URL.Path,
		"remote", r.RemoteAddr,
		"code", apperrors.CodeOf(err),
		"error", err,
	)
	w.WriteHeader(http.StatusForbidden)
}

// peer serialises writes to one connection.
type peer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (p *peer) send(msg any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return websocket.JSON.Send(p.conn, msg)
}

type session struct {
	hs   *handshake
	peer *peer
	// ctx outlives the connection so that a disconnect never interrupts a submission mid-write.
	ctx context.Context
}

func (h *Handler) serve(conn *websocket.Conn, hs *handshake, subs ...*pubsub.Subscription) {
	defer conn.Close()
	if !h.track(conn) {
		return
	}
	defer h.untrack(conn)

	metrics.SessionOpened()
	defer metrics.SessionClosed()

	s := &session{
		hs:   hs,
		peer: &peer{conn: conn},
		ctx:  context.WithoutCancel(conn.Request().Context()),
	}
	logger := slog.With("judge_id", hs.judge.ID, "team_id", hs.team.ID)
	logger.Info("judge connected", "competition_id", hs.competition.ID)
	defer logger.Info("judge disconnected")

	if err := s.peer.send(connectionEstablished{
		Kind: KindConnectionEstablished,
		Judge: judgeInfo{
			ID:       hs.judge.ID,
			Username: hs.judge.Username,
			FullName: hs.judge.FullName(),
		},
		Team:        *hs.team,
		MaxRecords:  h.submissions.MaxRecords(),
		Competition: *hs.competition,
	}); err != nil {
		logger.Warn("failed to send connection established", "error", err)
		return
	}

	done := make(chan struct{})
	defer close(done)
	for _, sub := range subs {
		go relay(s.peer, sub, done, logger)
	}

	decodeErrors := 0
	for {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			if errors.Is(err, websocket.ErrFrameTooLarge) {
				decodeErrors++
				_ = s.peer.send(errorMessage{Kind: KindError, Code: apperrors.CodeValidation, Reason: "message too large"})
				if decodeErrors >= maxDecodeErrorsPerConn {
					return
				}
				continue
			}
			if !errors.Is(err, io.EOF) && !h.isDraining() {
				logger.Warn("judge connection read failed", "error", err)
			}
			return
		}

		var req request
		if err := json.Unmarshal(data, &req); err != nil {
			decodeErrors++
			_ = s.peer.send(errorMessage{Kind: KindError, Code: apperrors.CodeValidation, Reason: "invalid message payload"})
			if decodeErrors >= maxDecodeErrorsPerConn {
				logger.Warn("closing judge connection after repeated decode errors")
				return
			}
			continue
		}
		decodeErrors = 0

		h.dispatch(s, req, logger)
	}
}

// dispatch answers one request with exactly one correlated message.
func (h *Handler) dispatch(s *session, req request, logger *slog.Logger) {
	teamID := req.TeamID
	if teamID == 0 {
		teamID = s.hs.team.ID
	}

	var reply any
	switch req.Kind {
	case KindSubmitSingle:
		result, err := h.submissions.SubmitSingle(s.ctx, s.hs.judge, teamID, req.RecordInput)
		if err != nil {
			logFailure(logger, req, err)
			reply = errorReply(req.RequestID, err)
			break
		}
		reply = recordSaved{Kind: KindRecordSaved, RequestID: req.RequestID, Record: result.Record, Duplicate: result.Duplicate}
	case KindSubmitBatch:
		result, err := h.submissions.SubmitBatch(s.ctx, s.hs.judge, teamID, req.Records)
		if err != nil {
			logFailure(logger, req, err)
			reply = errorReply(req.RequestID, err)
			break
		}
		reply = batchResult{Kind: KindBatchResult, RequestID: req.RequestID, BatchResult: result}
	default:
		reply = errorReply(req.RequestID, apperrors.New(apperrors.CodeValidation, "unsupported message kind"))
	}

	if err := s.peer.send(reply); err != nil {
		logger.Warn("failed to send reply", "kind", req.Kind, "request_id", req.RequestID, "error", err)
	}
}

func errorReply(requestID string, err error) errorMessage {
	return errorMessage{
		Kind:      KindError,
		RequestID: requestID,
		Code:      apperrors.CodeOf(err),
		Reason:    apperrors.PublicMessage(err),
	}
}

func logFailure(logger *slog.Logger, req request, err error) {
	if apperrors.CodeOf(err) == apperrors.CodePersistence {
		logger.Error("submission failed", "kind", req.Kind, "request_id", req.RequestID, "error", err)
		return
	}
	logger.Info("submission rejected", "kind", req.Kind, "request_id", req.RequestID, "error", err)
}

// relay forwards lifecycle events until the subscription or the session ends.
func relay(p *peer, sub *pubsub.Subscription, done <-chan struct{}, logger *slog.Logger) {
	for {
		select {
		case event := <-sub.C:
			notice := lifecycleNotice{
				Kind:          string(event.Type),
				CompetitionID: event.CompetitionID,
				Name:          event.Name,
				Running:       event.Running,
				OccurredAt:    event.OccurredAt,
			}
			if err := p.send(notice); err != nil {
				logger.Warn("failed to relay event", "topic", sub.Topic, "type", event.Type, "error", err)
			}
		case <-sub.Done():
			return
		case <-done:
			return
		}
	}
}
