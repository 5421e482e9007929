package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steakoverflow/weather"
	"github.com/steakoverflow/weather/format"
)

type LookupService interface {
	Lookup(ctx context.Context, query string) (*weather.WeatherModel, error)
	History(ctx context.Context, limit int) ([]*weather.Lookup, error)
	Get(ctx context.Context, id string) (*weather.Lookup, error)
}

type Server struct {
	service LookupService
	logger  *zap.Logger
}

func NewServer(service LookupService, logger *zap.Logger) *Server {
	return &Server{service: service, logger: logger}
}

func (s *Server) Routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/weather", s.lookup)
	r.GET("/history", s.history)
	r.GET("/history/:lookupId", s.findLookup)

	return r
}

type LookupInput struct {
	Query    string `form:"q" binding:"required,max=200"`
	Rounding string `form:"rounding" binding:"omitempty,oneof=half-even down"`
}

func (s *Server) lookup(c *gin.Context) {
	var input LookupInput
	if err := c.ShouldBindQuery(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rounding, err := format.ParseRounding(input.Rounding)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	model, err := s.service.Lookup(c.Request.Context(), input.Query)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": format.Message(weather.AsErrorData(err))})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"rows":  format.Rows(model, format.Options{Rounding: rounding}),
		"items": model.List,
	}})
}

type HistoryInput struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

func (s *Server) history(c *gin.Context) {
	var input HistoryInput
	if err := c.ShouldBindQuery(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.Limit == 0 {
		input.Limit = 20
	}

	lookups, err := s.service.History(c.Request.Context(), input.Limit)
	if err != nil {
		s.errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"lookups": lookups,
	}})
}

func (s *Server) findLookup(c *gin.Context) {
	lookupId := c.Param("lookupId")

	lookup, err := s.service.Get(c.Request.Context(), lookupId)
	if errors.Is(err, weather.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{})
		return
	} else if err != nil {
		s.errorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"lookup": lookup,
	}})
}

func (s *Server) errorResponse(c *gin.Context, err error) {
	s.logger.Error("error response", zap.String("path", c.FullPath()), zap.Error(err))

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
