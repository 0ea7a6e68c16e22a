package server

import (
	"context"
	"errors"
	"log"
	"net"
	"time"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/Tyrowin/chatrelay/internal/metrics"
	"github.com/Tyrowin/chatrelay/internal/protocol"
	"github.com/cenkalti/backoff/v4"
)

// acceptLoop accepts TCP connections until the listener is closed. Accept
// errors are retried with exponential backoff and never end the loop.
func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 5 * time.Millisecond
	retry.MaxInterval = time.Second
	retry.MaxElapsedTime = 0

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosing() || errors.Is(err, net.ErrClosed) {
				return
			}
			wait := retry.NextBackOff()
			log.Printf("Accept error: %v; retrying in %s", err, wait)
			select {
			case <-s.done:
				return
			case <-time.After(wait):
			}
			continue
		}
		retry.Reset()

		session := chat.NewSession(newTCPTransport(conn, s.cfg.Server.MaxFrameSize), s.cfg.Server.SendQueueSize)
		log.Printf("New connection from %s", session)
		if !s.spawn(session, transportTCP) {
			_ = conn.Close()
			return
		}
	}
}

// spawn registers session for shutdown tracking and starts its goroutines.
// It returns false once shutdown has begun.
func (s *Server) spawn(session *chat.Session, transport string) bool {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return false
	}
	s.sessions[session] = struct{}{}
	s.wg.Add(2)
	s.mu.Unlock()

	metrics.TotalConnections.WithLabelValues(transport).Inc()
	metrics.ActiveConnections.Inc()

	go func() {
		defer s.wg.Done()
		session.WritePump()
	}()
	go func() {
		defer s.wg.Done()
		s.serveSession(session)
	}()
	return true
}

// serveSession runs the receive loop of one connection. The deferred block is
// the only exit path, so the leave notification and cleanup run exactly once.
func (s *Server) serveSession(session *chat.Session) {
	limiter := newRateLimiter(s.cfg.RateLimit)

	defer func() {
		if err := s.router.Disconnect(session); err != nil {
			log.Printf("Error announcing departure of %s: %v", session, err)
		}
		if err := session.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection from %s: %v", session.RemoteAddr(), err)
		}

		s.mu.Lock()
		delete(s.sessions, session)
		s.mu.Unlock()
		metrics.ActiveConnections.Dec()
		lifetime := session.Lifetime()
		metrics.SessionDuration.Observe(lifetime.Seconds())
		log.Printf("Connection %s closed after %s", session.ID(), lifetime.Round(time.Millisecond))
	}()

	for {
		msg, err := session.ReadMessage()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformed) {
				metrics.DecodeErrors.Inc()
				log.Printf("Invalid message from %s: %v", session, err)
				continue
			}
			s.logReadError(session, err)
			return
		}

		if !limiter.allow() {
			metrics.RateLimited.Inc()
			log.Printf("Rate limit exceeded for %s (%d messages per %s); discarding message",
				session, s.cfg.RateLimit.Burst, s.cfg.RateLimit.RefillInterval)
			continue
		}

		if err := s.router.Handle(session, msg); err != nil {
			log.Printf("Error routing %s from %s: %v", msg.Type, session, err)
		}
	}
}

// logReadError logs why a receive loop ended.
func (s *Server) logReadError(session *chat.Session, err error) {
	switch {
	case errors.Is(err, protocol.ErrFrameTooLarge):
		log.Printf("Frame from %s exceeded maximum size of %d bytes", session, s.cfg.Server.MaxFrameSize)
	case isExpectedCloseError(err):
		log.Printf("Client %s disconnected", session)
	default:
		log.Printf("Read error from %s: %v", session, err)
	}
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// Shutdown stops accepting connections, closes every live session and waits
// for their goroutines, or until timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	log.Println("Initiating chat server shutdown...")

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	close(s.done)
	sessions := make([]*chat.Session, 0, len(s.sessions))
	for session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.Unlock()

	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing listener: %v", err)
		}
	}
	if s.httpServer != nil {
		if err := ShutdownServer(s.httpServer, timeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}

	for _, session := range sessions {
		if err := session.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection from %s: %v", session.RemoteAddr(), err)
		}
	}
	log.Printf("Closed %d client connections", len(sessions))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Chat server shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Chat server shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
