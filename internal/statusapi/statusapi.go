// Package statusapi exposes a read-only, unauthenticated HTTP view of the
// player engine's current state, for dashboards and health checks — no
// control endpoints live here, only a public status snapshot.
package statusapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kvalheim/audiocore/internal/player"
)

// Server wraps a gin engine serving the status endpoints.
type Server struct {
	router *gin.Engine
	http   *http.Server
	player *player.Engine
}

// New builds a Server bound to addr that reports eng's state.
func New(addr string, eng *player.Engine) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{router: r, player: eng}
	r.GET("/health", s.health)
	r.GET("/status", s.status)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving the status API until Shutdown is called.
func (s *Server) ListenAndServe() error {
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown() error {
	return s.http.Shutdown(context.Background())
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) status(c *gin.Context) {
	track := s.player.CurrentTrack()

	var trackInfo gin.H
	if track != nil {
		comments := make(gin.H, len(track.Comments))
		for _, cm := range track.Comments {
			comments[cm.Key] = cm.Value
		}
		trackInfo = gin.H{
			"duration": track.Duration,
			"comments": comments,
		}
	}

	var lastErr string
	if err := s.player.LastError(); err != nil {
		lastErr = err.Error()
	}

	volLeft, volRight, volErr := s.player.GetVolume()
	var volume gin.H
	if volErr == nil {
		volume = gin.H{"left": volLeft, "right": volRight}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           s.player.Status().String(),
		"position_seconds": s.player.Position(),
		"buffered_chunks":  s.player.BufferedChunks(),
		"track":            trackInfo,
		"metadata_changed": s.player.MetadataChanged(),
		"last_error":       lastErr,
		"volume":           volume,
	})
}
