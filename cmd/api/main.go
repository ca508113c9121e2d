package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/attendance-engine-go/internal/config"
	"github.com/cmlabs-hris/attendance-engine-go/internal/domain/approval"
	"github.com/cmlabs-hris/attendance-engine-go/internal/fixtures"
	appHTTP "github.com/cmlabs-hris/attendance-engine-go/internal/handler/http"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/cron"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-engine-go/internal/pkg/storage"
	"github.com/cmlabs-hris/attendance-engine-go/internal/repository/postgresql"
	approvalService "github.com/cmlabs-hris/attendance-engine-go/internal/service/approval"
	attendanceService "github.com/cmlabs-hris/attendance-engine-go/internal/service/attendance"
	delegationService "github.com/cmlabs-hris/attendance-engine-go/internal/service/delegation"
	"github.com/cmlabs-hris/attendance-engine-go/internal/service/file"
	notificationService "github.com/cmlabs-hris/attendance-engine-go/internal/service/notification"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		return
	}

	dsn := cfg.DatabaseURL()
	db, err := database.NewPostgreSQLDB(dsn)
	if err != nil {
		fmt.Println("Error connecting to database:", err)
		return
	}

	sessionRepo := postgresql.NewSessionRepository(db)
	zoneRepo := postgresql.NewZoneRepository(db)
	workflowRepo := postgresql.NewWorkflowRepository(db)
	requestRepo := postgresql.NewRequestRepository(db)
	stepRepo := postgresql.NewStepRepository(db)
	roleDirectory := postgresql.NewRoleDirectory(db)
	delegationRepo := postgresql.NewDelegationRepository(db)
	notificationRepo := postgresql.NewNotificationRepository(db)

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)

	var fileStorage storage.FileStorage
	switch cfg.Storage.Type {
	case "local":
		fileStorage, err = storage.NewLocalStorage(
			cfg.Storage.BasePath,
			cfg.Storage.BaseURL,
		)
		if err != nil {
			log.Fatal("Failed to initialize local storage:", err)
		}
	default:
		log.Fatal("Unsupported storage type: ", cfg.Storage.Type)
	}

	fileService := file.NewFileService(fileStorage)

	hub := sse.NewHub()
	notifService := notificationService.NewNotificationService(notificationRepo, hub, notificationService.Config{})

	delegationSvc := delegationService.NewDelegationService(delegationRepo, notifService)
	delegationResolver := delegationService.NewResolver(delegationRepo)

	approvalSvc := approvalService.NewApprovalService(
		db,
		workflowRepo,
		requestRepo,
		stepRepo,
		roleDirectory,
		delegationResolver,
		notifService,
	)

	sessionSvc := attendanceService.NewSessionService(
		sessionRepo,
		zoneRepo,
		approvalSvc,
		fileService,
		attendanceService.Config{
			StandardShiftMinutes:   cfg.Attendance.StandardShiftMinutes,
			OvertimeDisputeMinutes: cfg.Attendance.OvertimeDisputeMinutes,
			StaleSessionHours:      cfg.Attendance.StaleSessionHours,
		},
	)

	// Terminal resolutions flow back to the attendance engine through
	// this callback; the two engines share no mutable state.
	approvalSvc.RegisterSubjectResolver(approval.SubjectTypeAttendance, sessionSvc)

	if err := seedWorkflows(context.Background(), workflowRepo); err != nil {
		log.Fatal("Failed to seed default workflows:", err)
	}

	scheduler := cron.NewScheduler()
	scheduler.AddJob("escalate-stale-approvals", cfg.Attendance.EscalationSweepInterval, approvalSvc.EscalateStale)
	scheduler.AddJob("flag-stale-sessions", time.Hour, sessionSvc.FlagStaleSessions)
	scheduler.AddJob("deactivate-expired-delegations", time.Hour, func(ctx context.Context) error {
		_, err := delegationRepo.DeactivateExpired(ctx, time.Now().UTC())
		return err
	})
	scheduler.Start()

	attendanceHandler := appHTTP.NewAttendanceHandler(sessionSvc)
	approvalHandler := appHTTP.NewApprovalHandler(approvalSvc)
	delegationHandler := appHTTP.NewDelegationHandler(delegationSvc)
	notificationHandler := appHTTP.NewNotificationHandler(notifService, JWTService)

	router := appHTTP.NewRouter(
		JWTService,
		attendanceHandler,
		approvalHandler,
		delegationHandler,
		notificationHandler,
		cfg.App.FrontendURL,
		cfg.App.Env,
	)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Server running at http://localhost%s\n", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Println("Server shutdown error:", err)
	}

	scheduler.Stop()
	notifService.Stop()
	db.Close()
}

// seedWorkflows registers the default approval chain for each exception
// type that has no active template yet.
func seedWorkflows(ctx context.Context, workflows approval.WorkflowRepository) error {
	for _, workflow := range fixtures.GetDefaultWorkflows() {
		_, err := workflows.GetActiveByType(ctx, workflow.WorkflowType)
		if err == nil {
			continue
		}
		if !errors.Is(err, approval.ErrUnknownWorkflow) {
			return err
		}

		if _, err := workflows.Create(ctx, workflow); err != nil {
			return fmt.Errorf("failed to seed %s workflow: %w", workflow.WorkflowType, err)
		}
	}
	return nil
}
