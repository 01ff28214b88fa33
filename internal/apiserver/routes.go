package apiserver

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/services", s.handleServices)
	s.router.GET("/incidents", s.handleListIncidents)
	s.router.GET("/incidents/:id", s.handleGetIncident)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":            "healthy",
		"incidents_tracked": s.store.Count(),
	})
}

func (s *Server) handleServices(c *gin.Context) {
	summary := s.store.ServiceSummary()

	services := make([]gin.H, 0, len(summary))
	for _, svc := range summary {
		anomalies := make([]gin.H, 0, len(svc.RecentAnomalies))
		for _, a := range svc.RecentAnomalies {
			anomalies = append(anomalies, gin.H{
				"metric":  a.Metric,
				"z_score": a.ZScore,
			})
		}
		services = append(services, gin.H{
			"service":        svc.Service,
			"status":         svc.Status,
			"worst_severity": svc.WorstSeverity,
			"incident_count": svc.IncidentCount,
			"anomalies":      anomalies,
		})
	}

	c.JSON(200, gin.H{"services": services})
}

func (s *Server) handleListIncidents(c *gin.Context) {
	limit := parseQueryInt(c, "limit", 0)
	offset := parseQueryInt(c, "offset", 0)

	incidents := s.store.List(limit, offset)
	c.JSON(200, gin.H{
		"total":     s.store.Count(),
		"incidents": incidents,
	})
}

func (s *Server) handleGetIncident(c *gin.Context) {
	id := c.Param("id")
	inc, ok := s.store.Get(id)
	if !ok {
		writeError(c, 404, "NOT_FOUND", "no incident with id "+id)
		return
	}
	c.JSON(200, inc)
}

// parseQueryInt reads an integer query parameter, falling back to def when
// absent or unparseable rather than rejecting the request.
func parseQueryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
