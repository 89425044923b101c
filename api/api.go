// Package api exposes session managers over HTTP. Every call goes to
// /api?action=<name>&session=<id>; reads are GET and writes are POST with a
// JSON body.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hoshinonyaruko/tabletop/session"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultSession = "default"
	hostKeyHeader  = "X-Host-Key"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// errBadBody marks a request body that is not the JSON the action expects.
var errBadBody = errors.New("malformed request body")

// Settings are the parts of the server that may change while it runs.
type Settings struct {
	AllowedOrigins []string
	HostKeyHash    string // bcrypt hash; empty means nobody is host
	DevMode        bool   // every caller is host
}

type readFunc func(c *gin.Context, sessionID string) (gin.H, error)

type writeFunc func(ctx context.Context, sessionID string, body []byte) (gin.H, error)

// Server routes actions to a session.Manager.
type Server struct {
	manager  *session.Manager
	logger   *zap.Logger
	settings atomic.Pointer[Settings]

	reads  map[string]readFunc
	writes map[string]writeFunc
}

// New creates a server. The settings can be replaced later with
// UpdateSettings.
func New(manager *session.Manager, settings Settings, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{manager: manager, logger: logger}
	s.settings.Store(&settings)
	s.reads = map[string]readFunc{
		"auth":  s.auth,
		"state": s.state,
		"check": s.check,
		"ping":  s.ping,
		"rolls": s.rolls,
	}
	s.writes = s.writeActions()
	return s
}

// UpdateSettings swaps the live settings, e.g. after a config reload.
func (s *Server) UpdateSettings(settings Settings) {
	s.settings.Store(&settings)
}

// Router builds the gin engine serving /api and /healthz.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger(), s.cors())
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.Any("/api", s.Dispatch())
	return router
}

// Dispatch is the single handler behind /api.
func (s *Server) Dispatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		action := c.Query("action")
		sessionID := c.DefaultQuery("session", defaultSession)
		if !sessionIDPattern.MatchString(sessionID) {
			fail(c, http.StatusBadRequest, "Invalid session")
			return
		}

		read, isRead := s.reads[action]
		write, isWrite := s.writes[action]
		if !isRead && !isWrite {
			fail(c, http.StatusBadRequest, "Unknown action")
			return
		}

		var (
			res gin.H
			err error
		)
		switch {
		case c.Request.Method == http.MethodGet && isRead:
			res, err = read(c, sessionID)
		case c.Request.Method == http.MethodPost && isWrite:
			body, rerr := c.GetRawData()
			if rerr != nil {
				fail(c, http.StatusBadRequest, "Unreadable body")
				return
			}
			res, err = write(c.Request.Context(), sessionID, body)
		default:
			fail(c, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		if err != nil {
			s.respondError(c, action, sessionID, err)
			return
		}
		if res == nil {
			res = gin.H{}
		}
		res["success"] = true
		c.JSON(http.StatusOK, res)
	}
}

func (s *Server) respondError(c *gin.Context, action, sessionID string, err error) {
	switch {
	case errors.Is(err, errBadBody):
		fail(c, http.StatusBadRequest, err.Error())
	case session.IsValidation(err):
		// recoverable: the client shows the message and carries on
		fail(c, http.StatusOK, err.Error())
	case errors.Is(err, session.ErrVersionConflict):
		s.logger.Warn("write abandoned after conflicts",
			zap.String("action", action), zap.String("session", sessionID), zap.Error(err))
		fail(c, http.StatusConflict, "Session busy, try again")
	default:
		s.logger.Error("request failed",
			zap.String("action", action), zap.String("session", sessionID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "internal error")
	}
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

// decode unmarshals a request body into v. An empty body reads as {}.
func decode(body []byte, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

// isHost reports whether the request carries the host key.
func (s *Server) isHost(c *gin.Context) bool {
	settings := s.settings.Load()
	if settings.DevMode {
		return true
	}
	key := c.GetHeader(hostKeyHeader)
	if key == "" || settings.HostKeyHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(settings.HostKeyHash), []byte(key)) == nil
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.settings.Load().AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && s.originAllowed(origin) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, "+hostKeyHeader)
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("action", c.Query("action")),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// Reads.

func (s *Server) auth(c *gin.Context, _ string) (gin.H, error) {
	return gin.H{"authenticated": true, "isGameMaster": s.isHost(c)}, nil
}

func (s *Server) state(c *gin.Context, sessionID string) (gin.H, error) {
	snap, err := s.manager.Snapshot(c.Request.Context(), sessionID)
	if err != nil {
		return nil, err
	}
	return gin.H{"data": snap}, nil
}

func (s *Server) check(c *gin.Context, sessionID string) (gin.H, error) {
	// like the browser client, a missing or garbled version means "know nothing"
	known, _ := strconv.ParseInt(c.Query("version"), 10, 64)
	res, err := s.manager.Check(c.Request.Context(), sessionID, known)
	if err != nil {
		return nil, err
	}
	out := gin.H{"hasChanges": res.HasChanges, "version": res.Version}
	if res.HasChanges {
		out["data"] = res.Data
	}
	return out, nil
}

func (s *Server) ping(c *gin.Context, sessionID string) (gin.H, error) {
	p, err := s.manager.Ping(c.Request.Context(), sessionID)
	if err != nil {
		return nil, err
	}
	return gin.H{"ping": p}, nil
}

func (s *Server) rolls(c *gin.Context, sessionID string) (gin.H, error) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	log, err := s.manager.RecentRolls(c.Request.Context(), sessionID, limit)
	if err != nil {
		return nil, err
	}
	return gin.H{"rolls": log}, nil
}
