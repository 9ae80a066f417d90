package api

import (
	"alcyxob/gym-app/internal/domain" // Needed for RoleMiddleware
	"alcyxob/gym-app/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	trainerService service.TrainerService,
	packageService service.PackageService,
	appointmentService service.AppointmentService,
	membershipService service.MembershipService,
	paymentService service.PaymentService,
) {
	RegisterValidators()

	authHandler := NewAuthHandler(authService)
	trainerHandler := NewTrainerHandler(trainerService, appointmentService)
	packageHandler := NewPackageHandler(packageService)
	appointmentHandler := NewAppointmentHandler(appointmentService)
	membershipHandler := NewMembershipHandler(membershipService)
	paymentHandler := NewPaymentHandler(paymentService)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		// Catalog is public so visitors can browse before signing up.
		apiV1.GET("/packages", packageHandler.ListPackages)
		apiV1.GET("/packages/:id", packageHandler.GetPackage)

		// Gateway callbacks authenticate by signature, not JWT.
		apiV1.POST("/payments/notify", paymentHandler.Notify)
		apiV1.GET("/payments/return", paymentHandler.Return)
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, codeInternal, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr, "role": role})
		})

		// --- Trainer Routes ---
		trainerGroup := protected.Group("/trainers")
		{
			trainerGroup.GET("", trainerHandler.ListTrainers)
			trainerGroup.GET("/:trainerId", trainerHandler.GetTrainer)
			// Ownership (trainer may only edit their own) is checked in the service.
			trainerGroup.PUT("/:trainerId/schedule", RoleMiddleware(domain.RoleTrainer, domain.RoleAdmin), trainerHandler.UpdateSchedule)
			trainerGroup.GET("/:trainerId/availability", trainerHandler.CheckAvailability)
		}

		// --- Appointment Routes ---
		appointmentGroup := protected.Group("/appointments")
		{
			appointmentGroup.POST("", RoleMiddleware(domain.RoleMember), appointmentHandler.CreateAppointment)
			// Results are scoped to the caller's role in the service.
			appointmentGroup.GET("", appointmentHandler.ListAppointments)
			appointmentGroup.GET("/:id", appointmentHandler.GetAppointment)
			appointmentGroup.POST("/:id/cancel", appointmentHandler.CancelAppointment)
			appointmentGroup.POST("/:id/confirm", RoleMiddleware(domain.RoleTrainer, domain.RoleAdmin), appointmentHandler.ConfirmAppointment)
			appointmentGroup.POST("/:id/complete", RoleMiddleware(domain.RoleMember), appointmentHandler.CompleteAppointment)
			appointmentGroup.PATCH("/:id/reschedule", RoleMiddleware(domain.RoleMember), appointmentHandler.RescheduleAppointment)
		}

		// --- Membership Routes ---
		membershipGroup := protected.Group("/memberships")
		{
			membershipGroup.GET("", RoleMiddleware(domain.RoleMember, domain.RoleAdmin), membershipHandler.ListMemberships)
			membershipGroup.GET("/:id", RoleMiddleware(domain.RoleMember, domain.RoleAdmin), membershipHandler.GetMembership)
			membershipGroup.POST("/:id/pause", RoleMiddleware(domain.RoleMember), membershipHandler.PauseMembership)
			membershipGroup.POST("/:id/resume", RoleMiddleware(domain.RoleMember), membershipHandler.ResumeMembership)
		}

		protected.POST("/payments", RoleMiddleware(domain.RoleMember), paymentHandler.CreatePayment)

		// --- Admin Routes ---
		adminGroup := protected.Group("/admin")
		adminGroup.Use(RoleMiddleware(domain.RoleAdmin))
		{
			adminGroup.POST("/packages", packageHandler.CreatePackage)
			adminGroup.GET("/payment-events/:eventId/raw", paymentHandler.EventArchiveURL)
		}
	}
}
