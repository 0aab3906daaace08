package httpserver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/keepwatching/logtail/internal/model"
)

const maxSearchLimit = 5000

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	}
	if s.conf.Archive != nil {
		count, err := s.conf.Archive.TotalLogCount()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read archive"})
			return
		}
		body["log_count"] = count
	}
	if s.conf.Status != nil {
		body["stream"] = s.conf.Status.Status().State
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.conf.Status.Status())
}

// handleLogs searches the archive. Query: service, level (repeatable or
// comma separated), search, since (RFC 3339), limit.
func (s *Server) handleLogs(c *gin.Context) {
	q := model.ArchiveQuery{
		Service: model.Service(strings.TrimSpace(c.Query("service"))),
		Search:  strings.TrimSpace(c.Query("search")),
		Limit:   100,
	}
	for _, raw := range c.QueryArray("level") {
		for _, part := range strings.Split(raw, ",") {
			lvl := model.Level(strings.TrimSpace(part))
			if lvl == "" {
				continue
			}
			if !lvl.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown level " + strconv.Quote(string(lvl))})
				return
			}
			q.Levels = append(q.Levels, lvl)
		}
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC 3339"})
			return
		}
		q.Since = t
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		q.Limit = min(n, maxSearchLimit)
	}

	records, err := s.conf.Archive.RecentLogs(q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "archive query failed"})
		return
	}
	if records == nil {
		records = []model.LogRecord{}
	}
	c.JSON(http.StatusOK, gin.H{
		"logs":  records,
		"count": len(records),
	})
}

func (s *Server) handleLevels(c *gin.Context) {
	counts, err := s.conf.Archive.LevelCounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "archive query failed"})
		return
	}
	out := make(map[model.Level]int64, len(counts))
	for _, lc := range counts {
		out[lc.Level] = lc.Count
	}
	c.JSON(http.StatusOK, out)
}
