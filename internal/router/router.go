package router

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/helpy/paths"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/psds-microservice/rma-service/api"
	"github.com/psds-microservice/rma-service/internal/handler"
	"github.com/psds-microservice/rma-service/internal/logger"
)

type Deps struct {
	RMA   *handler.RMAHandler
	Teams *handler.TeamsHandler
	DB    handler.Pinger
	Log   *slog.Logger
}

func New(d Deps) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), accessLog(logger.Or(d.Log).With("component", "http")))

	r.GET(paths.PathHealth, handler.Health)
	r.GET(paths.PathReady, handler.Ready(d.DB))
	r.GET(paths.PathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, paths.PathSwagger+"/") })
	r.GET(paths.PathSwagger+"/*any", func(c *gin.Context) {
		switch strings.TrimPrefix(c.Param("any"), "/") {
		case "openapi.json":
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		case "":
			c.Request.URL.Path = paths.PathSwagger + "/index.html"
			c.Request.RequestURI = paths.PathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(paths.PathSwagger+"/openapi.json"))(c)
	})

	v1 := r.Group("/api/v1")
	{
		v1.POST("/rma/process", d.RMA.Process)
		v1.GET("/rma", d.RMA.List)
		v1.GET("/rma/:rmaNumber", d.RMA.Get)
		v1.DELETE("/rma/:rmaNumber", d.RMA.Delete)
		v1.POST("/teams/search", d.Teams.Search)
	}

	return r
}
