package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vnscript-editor/langservice"
	"vnscript-editor/parser"
)

// ============================================
// Language service Handlers
// ============================================

// PositionRequest indica una posizione nel sorgente (riga e colonna a base zero)
type PositionRequest struct {
	File string `json:"file" binding:"required"`
	Row  int    `json:"row"`
	Col  int    `json:"col"`
}

func (r PositionRequest) position() langservice.Position {
	return langservice.Position{File: r.File, Row: r.Row, Col: r.Col}
}

// RenameRequest richiesta di rinomina
type RenameRequest struct {
	PositionRequest
	NewName string `json:"new_name" binding:"required"`
}

// service crea il servizio di linguaggio sul progetto indicato
func (s *Server) service(proj *parser.Project) *langservice.Service {
	return langservice.New(proj, s.grammar)
}

// bindPosition legge la posizione e restituisce il servizio sul progetto corrente
func (s *Server) bindPosition(c *gin.Context, req interface{}) (*langservice.Service, bool) {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	proj, _, ok := s.requireProject(c)
	if !ok {
		return nil, false
	}
	return s.service(proj), true
}

// langError traduce gli errori del servizio di linguaggio in stati HTTP
func langError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, langservice.ErrNoToken), errors.Is(err, langservice.ErrNoReferent):
		status = http.StatusNotFound
	case errors.Is(err, langservice.ErrNotRenamable), errors.Is(err, langservice.ErrInvalidName):
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

// completion propone le continuazioni della riga alla posizione
func (s *Server) completion(c *gin.Context) {
	var req PositionRequest
	svc, ok := s.bindPosition(c, &req)
	if !ok {
		return
	}

	items, err := svc.Completion(req.position())
	if err != nil {
		langError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"items":   items,
		"count":   len(items),
	})
}

// hover descrive il token alla posizione
func (s *Server) hover(c *gin.Context) {
	var req PositionRequest
	svc, ok := s.bindPosition(c, &req)
	if !ok {
		return
	}

	h, err := svc.Hover(req.position())
	if err != nil {
		langError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "hover": h})
}

// signature restituisce la firma dell'istruzione in corso di scrittura
func (s *Server) signature(c *gin.Context) {
	var req PositionRequest
	svc, ok := s.bindPosition(c, &req)
	if !ok {
		return
	}

	info, found := svc.SignatureHelp(req.position())
	if !found {
		c.JSON(http.StatusOK, gin.H{"success": true, "signature": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "signature": info})
}

// definition restituisce dove è definita l'entità alla posizione
func (s *Server) definition(c *gin.Context) {
	var req PositionRequest
	svc, ok := s.bindPosition(c, &req)
	if !ok {
		return
	}

	ranges, err := svc.Definition(req.position())
	if err != nil {
		langError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "definitions": ranges})
}

// references elenca tutti gli usi dell'entità alla posizione
func (s *Server) references(c *gin.Context) {
	var req PositionRequest
	svc, ok := s.bindPosition(c, &req)
	if !ok {
		return
	}

	ranges, err := svc.References(req.position())
	if err != nil {
		langError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"references": ranges,
		"count":      len(ranges),
	})
}

// rename calcola le modifiche per rinominare l'entità alla posizione.
// Le modifiche non vengono applicate: è l'editor ad applicarle ai buffer.
func (s *Server) rename(c *gin.Context) {
	var req RenameRequest
	svc, ok := s.bindPosition(c, &req)
	if !ok {
		return
	}

	edits, err := svc.Rename(req.position(), req.NewName)
	if err != nil {
		langError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"edits":   edits,
		"count":   len(edits),
	})
}
