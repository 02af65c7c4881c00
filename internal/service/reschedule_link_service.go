package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"fieldops/backend/config"
	"fieldops/backend/internal/dto"
	"fieldops/backend/internal/model"
	"fieldops/backend/internal/repository"
	"fieldops/backend/internal/scheduling"
	pkgerrors "fieldops/backend/pkg/errors"
)

// ── 改期链接模块业务错误 ──

var (
	ErrAppointmentClosed     = errors.New("预约已结束，不能改期")
	ErrRescheduleLinkInvalid = errors.New("改期链接无效或已过期")
)

// RescheduleLinkService 客户自助改期链接业务接口
type RescheduleLinkService interface {
	// Send 生成一次性链接并异步发送邮件；邮件未能入队时 Delivered=false，由前端展示链接供人工转发
	Send(ctx context.Context, appointmentID, actor string) (*dto.RescheduleLinkResponse, error)
	Verify(ctx context.Context, appointmentID string, req *dto.VerifyRescheduleLinkRequest) (*dto.VerifyRescheduleLinkResponse, error)
	// Redeem 消费令牌并按客户选择的日期时刻改派
	Redeem(ctx context.Context, appointmentID string, req *dto.RedeemRescheduleLinkRequest) (*dto.ReassignmentResponse, error)
}

type rescheduleLinkService struct {
	baseURL    string
	ttl        time.Duration
	repo       *repository.Repository
	dispatcher Dispatcher
	reassign   *reassignmentService
	logger     *zap.Logger
	now        func() time.Time
}

// NewRescheduleLinkService 创建 RescheduleLinkService 实例
func NewRescheduleLinkService(cfg *config.Config, repo *repository.Repository, dispatcher Dispatcher, reassign *reassignmentService, logger *zap.Logger) RescheduleLinkService {
	return &rescheduleLinkService{
		baseURL:    strings.TrimRight(cfg.Server.BaseURL, "/"),
		ttl:        cfg.Scheduling.RescheduleLinkTTL,
		repo:       repo,
		dispatcher: dispatcher,
		reassign:   reassign,
		logger:     logger,
		now:        time.Now,
	}
}

// ────────────────────── Send ──────────────────────

func (s *rescheduleLinkService) Send(ctx context.Context, appointmentID, actor string) (*dto.RescheduleLinkResponse, error) {
	appt, err := s.openAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.Project.GetByID(ctx, appt.ProjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		s.logger.Error("查询项目失败", zap.String("id", appt.ProjectID), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("project.get", err)
	}

	token := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("生成改期令牌失败", zap.Error(err))
		return nil, fmt.Errorf("生成改期令牌失败: %w", err)
	}

	expiresAt := s.now().Add(s.ttl)
	record := &model.RescheduleToken{
		AppointmentID: appt.AppointmentID,
		TokenHash:     string(hash),
		ExpiresAt:     expiresAt,
		CreatedBy:     actor,
	}
	if err := s.repo.RescheduleToken.Create(ctx, record); err != nil {
		s.logger.Error("保存改期令牌失败", zap.String("appointment_id", appt.AppointmentID), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("reschedule_token.create", err)
	}

	link := fmt.Sprintf("%s/reschedule/%s?token=%s", s.baseURL, appt.AppointmentID, url.QueryEscape(token))
	resp := &dto.RescheduleLinkResponse{
		AppointmentID: appt.AppointmentID,
		Link:          link,
		ExpiresAt:     expiresAt.UTC().Format(time.RFC3339),
	}

	switch {
	case p.ClientEmail == "":
		s.logger.Warn("客户邮箱缺失，改期链接需人工发送",
			zap.String("failure", "notification"),
			zap.String("appointment_id", appt.AppointmentID),
		)
	case s.dispatcher == nil:
		s.logger.Warn("邮件通道未配置，改期链接需人工发送",
			zap.String("failure", "notification"),
			zap.String("appointment_id", appt.AppointmentID),
		)
	default:
		err := s.dispatcher.DispatchRescheduleEmail(ctx, RescheduleEmail{
			To:            p.ClientEmail,
			ClientName:    p.ClientName,
			ProjectName:   p.Name,
			AppointmentID: appt.AppointmentID,
			Link:          link,
			ExpiresAt:     expiresAt,
		})
		if err != nil {
			s.logger.Warn("改期邮件入队失败，改期链接需人工发送",
				zap.String("failure", "notification"),
				zap.String("appointment_id", appt.AppointmentID),
				zap.Error(err),
			)
		} else {
			resp.Delivered = true
		}
	}

	s.logger.Info("改期链接已生成",
		zap.String("appointment_id", appt.AppointmentID),
		zap.Bool("delivered", resp.Delivered),
	)
	return resp, nil
}

// ────────────────────── Verify ──────────────────────

func (s *rescheduleLinkService) Verify(ctx context.Context, appointmentID string, req *dto.VerifyRescheduleLinkRequest) (*dto.VerifyRescheduleLinkResponse, error) {
	appt, _, err := s.match(ctx, appointmentID, req.Token)
	if err != nil {
		return nil, err
	}
	return &dto.VerifyRescheduleLinkResponse{
		Valid:         true,
		AppointmentID: appt.AppointmentID,
		ScheduledDate: formatDBDate(appt.ScheduledDate),
		ScheduledTime: appt.ScheduledTime,
	}, nil
}

// ────────────────────── Redeem ──────────────────────

func (s *rescheduleLinkService) Redeem(ctx context.Context, appointmentID string, req *dto.RedeemRescheduleLinkRequest) (*dto.ReassignmentResponse, error) {
	date, err := scheduling.ParseDate(req.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSlot, err)
	}
	clock, err := scheduling.ParseClock(req.Time)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSlot, err)
	}

	appt, token, err := s.match(ctx, appointmentID, req.Token)
	if err != nil {
		return nil, err
	}

	// 先消费令牌，并发提交时只有一个请求能继续
	if err := s.repo.RescheduleToken.MarkUsed(ctx, token.TokenID, s.now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRescheduleLinkInvalid
		}
		s.logger.Error("消费改期令牌失败", zap.String("appointment_id", appt.AppointmentID), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("reschedule_token.use", err)
	}

	actor := "client"
	if p, perr := s.repo.Project.GetByID(ctx, appt.ProjectID); perr == nil && p.ClientUserID != nil {
		actor = *p.ClientUserID
	}

	resp, err := s.reassign.run(ctx, reassignInput{
		ProjectID:       appt.ProjectID,
		AppointmentID:   appt.AppointmentID,
		OutgoingID:      appt.TechnicianID,
		Date:            &date,
		Time:            &clock,
		Actor:           actor,
		Trigger:         TriggerClient,
		IncludeOutgoing: true,
	})
	if err != nil {
		s.logger.Error("客户自助改期失败", zap.String("appointment_id", appt.AppointmentID), zap.Error(err))
		return nil, err
	}
	return resp, nil
}

// ── 内部辅助 ──

// match 找到与明文令牌匹配的未使用、未过期记录
func (s *rescheduleLinkService) match(ctx context.Context, appointmentID, token string) (*model.Appointment, *model.RescheduleToken, error) {
	appt, err := s.openAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) || errors.Is(err, ErrAppointmentClosed) {
			return nil, nil, ErrRescheduleLinkInvalid
		}
		return nil, nil, err
	}

	tokens, err := s.repo.RescheduleToken.ListUsable(ctx, appt.AppointmentID, s.now())
	if err != nil {
		s.logger.Error("查询改期令牌失败", zap.String("appointment_id", appt.AppointmentID), zap.Error(err))
		return nil, nil, pkgerrors.NewDataAccessError("reschedule_token.list", err)
	}
	for i := range tokens {
		if bcrypt.CompareHashAndPassword([]byte(tokens[i].TokenHash), []byte(token)) == nil {
			return appt, &tokens[i], nil
		}
	}
	return nil, nil, ErrRescheduleLinkInvalid
}

func (s *rescheduleLinkService) openAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	appt, err := s.repo.Appointment.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentNotFound
		}
		s.logger.Error("查询预约失败", zap.String("id", id), zap.Error(err))
		return nil, pkgerrors.NewDataAccessError("appointment.get", err)
	}
	st, err := scheduling.ParseAppointmentStatus(appt.Status)
	if err != nil {
		return nil, corrupt("appointment", appt.AppointmentID, err)
	}
	if !scheduling.CanResetToScheduled(st) || st == scheduling.AppointmentCancelled {
		return nil, ErrAppointmentClosed
	}
	return appt, nil
}
