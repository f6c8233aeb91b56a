// Package api serves session exports over HTTP
package api

import (
	"net/http"
	"strconv"

	"github.com/LdDl/pitch-tracker/mot"
	"github.com/LdDl/pitch-tracker/pipeline"
	"github.com/gin-gonic/gin"
	"gonum.org/v1/gonum/mat"
)

// Source is what router reads from. *pipeline.Processor satisfies it.
type Source interface {
	Export() mot.Export
	ExportTrack(id int) (mot.TrackExport, bool)
	LegacyExport() mot.LegacyExport
	TrackHeatmap(id int) (*mat.Dense, bool, error)
	Summaries() []pipeline.TrackSummary
}

// HeatmapResponse is blurred occupancy grid of single track. Values are row-major, rows along plane Y.
type HeatmapResponse struct {
	ID     int         `json:"id"`
	Rows   int         `json:"rows"`
	Cols   int         `json:"cols"`
	Values [][]float64 `json:"values"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter creates gin engine with read-only export routes
func NewRouter(source Source) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	apiRoutes := r.Group("/api")

	apiRoutes.GET("/tracks", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, source.Export())
	})

	apiRoutes.GET("/tracks/:id", func(ctx *gin.Context) {
		id, ok := parseID(ctx)
		if !ok {
			return
		}
		track, ok := source.ExportTrack(id)
		if !ok {
			ctx.JSON(http.StatusNotFound, errorResponse{Error: "track not found"})
			return
		}
		ctx.JSON(http.StatusOK, track)
	})

	apiRoutes.GET("/tracks/:id/heatmap", func(ctx *gin.Context) {
		id, ok := parseID(ctx)
		if !ok {
			return
		}
		grid, ok, err := source.TrackHeatmap(id)
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		if !ok {
			ctx.JSON(http.StatusNotFound, errorResponse{Error: "track not found"})
			return
		}
		rows, cols := grid.Dims()
		values := make([][]float64, rows)
		for i := range values {
			values[i] = mat.Row(nil, i, grid)
		}
		ctx.JSON(http.StatusOK, HeatmapResponse{
			ID:     id,
			Rows:   rows,
			Cols:   cols,
			Values: values,
		})
	})

	apiRoutes.GET("/summaries", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, source.Summaries())
	})

	apiRoutes.GET("/legacy", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, source.LegacyExport())
	})

	return r
}

func parseID(ctx *gin.Context) (int, bool) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id < 0 {
		ctx.JSON(http.StatusBadRequest, errorResponse{Error: "track id must be non-negative integer"})
		return 0, false
	}
	return id, true
}
