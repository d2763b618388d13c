// Package api exposes the HTTP surface over gin. Handlers translate service
// errors into the response taxonomy and never leak store internals.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urlmg/urlkeeper/internal/cache"
	"github.com/urlmg/urlkeeper/internal/indexnow"
	"github.com/urlmg/urlkeeper/internal/logger"
	"github.com/urlmg/urlkeeper/internal/repository"
	"github.com/urlmg/urlkeeper/internal/services"
)

// Server bundles the handler dependencies.
type Server struct {
	urls        *services.URLService
	users       *services.UserService
	otp         *services.OTPService
	adminRepo   repository.AdminRepository
	cache       cache.Cache
	indexNow    *indexnow.Service
	submissions chan<- []string
	cookieName  string
	sessionTTL  time.Duration
	log         logger.Logger
}

// NewServer wires a Server. submissions is the IndexNow worker channel;
// handlers only ever offer to it without blocking.
func NewServer(
	urls *services.URLService,
	users *services.UserService,
	otp *services.OTPService,
	adminRepo repository.AdminRepository,
	c cache.Cache,
	indexNow *indexnow.Service,
	submissions chan<- []string,
	cookieName string,
	sessionTTL time.Duration,
	log logger.Logger,
) *Server {
	return &Server{
		urls:        urls,
		users:       users,
		otp:         otp,
		adminRepo:   adminRepo,
		cache:       c,
		indexNow:    indexNow,
		submissions: submissions,
		cookieName:  cookieName,
		sessionTTL:  sessionTTL,
		log:         log,
	}
}

// Routes registers every endpoint on router. The route shapes mirror what the
// frontend already speaks, including the guest/auth split per operation.
func (s *Server) Routes(router *gin.Engine) {
	router.Use(s.requestID(), s.identify())

	router.GET("/health", s.healthCheck)

	// Guest URL operations, scoped by session token.
	router.POST("/url/add", s.createURL)
	router.GET("/geturls", s.listURLs)
	router.GET("/guest/url/get-data/:id", s.getGuestURL)
	router.PUT("/guest/url/edit/:id", s.updateURL)
	router.DELETE("/guest/url/delete/:id", s.deleteURL)

	// Duplicate removal works for either identity; /url/keep/:id is the
	// legacy alias still used by older clients.
	router.POST("/url/keep-this/:id", s.removeDuplicates)
	router.POST("/url/keep/:id", s.removeDuplicates)

	// Credential flows.
	router.POST("/user/signup/sendotp", s.sendSignupOTP)
	router.POST("/user/signup/verifyotp", s.verifySignupOTP)
	router.POST("/user/forgotpassword/sendotp", s.sendResetOTP)
	router.POST("/user/forgotpassword/verifyotp", s.verifyResetOTP)
	router.POST("/user/newpassword", s.resetPassword)
	router.POST("/user/login", s.login)
	router.POST("/user/logout", s.logout)

	// Session plumbing used by guests before they have any identity.
	router.POST("/user/session", s.storeSession)
	router.GET("/session-info", s.sessionInfo)

	// Reference data.
	router.GET("/backgrounds", s.listBackgrounds)
	router.GET("/notifications", s.latestNotification)

	router.POST("/indexnow/submit-sitemap", s.submitSitemap)
	router.GET("/:keyfile", s.indexNowKeyFile)

	auth := router.Group("/", s.requireAuth())
	{
		auth.POST("/url/create", s.createURL)
		auth.GET("/get-urls", s.listURLs)
		auth.GET("/user/url/get-data/:id", s.getURL)
		auth.PUT("/user/url/edit/:id", s.updateURL)
		auth.DELETE("/user/url/delete/:id", s.deleteURL)
		auth.POST("/user/url/update-click-count/:id", s.incrementClicks)
		auth.PUT("/update-favourite", s.toggleFavourite)

		auth.GET("/user", s.fetchUser)
		auth.PUT("/user/update-name", s.updateName)
		auth.PUT("/user/update-email", s.updateEmail)

		auth.GET("/user/tags", s.listTags)
		auth.POST("/user/tags", s.createTag)
		auth.PUT("/user/tags/:id", s.updateTag)
		auth.DELETE("/user/tags/:id", s.deleteTag)

		auth.POST("/indexnow", s.submitIndexNow)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
