package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"fieldops/backend/internal/dto"
)

// ── 测试辅助 ──

func setupTestRescheduleLink() (*rescheduleLinkService, *testEnv) {
	env := newTestEnv()
	env.addTechnician("T1")
	env.addTechnician("T2")
	env.addProject("p-1", "pending_installation", "T1")
	env.addAppointment("a-1", "p-1", "T1", "2025-03-17", "10:00", "scheduled")
	return env.service().RescheduleLink.(*rescheduleLinkService), env
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("解析链接失败: %v", err)
	}
	token := u.Query().Get("token")
	if token == "" {
		t.Fatalf("链接缺少 token: %s", link)
	}
	return token
}

// ── Send ──

func TestRescheduleLink_Send_Delivered(t *testing.T) {
	svc, env := setupTestRescheduleLink()

	resp, err := svc.Send(context.Background(), "a-1", "admin-1")
	if err != nil {
		t.Fatalf("Send 应成功: %v", err)
	}
	if !resp.Delivered {
		t.Error("邮件入队成功时 Delivered 应为 true")
	}
	if !strings.HasPrefix(resp.Link, "https://ops.example.com/reschedule/a-1?token=") {
		t.Errorf("链接格式不正确: %s", resp.Link)
	}
	if len(env.dispatcher.emails) != 1 || env.dispatcher.emails[0].To != "p-1@client.example.com" {
		t.Fatalf("应向客户邮箱发送一封邮件，实际 %+v", env.dispatcher.emails)
	}
	if env.dispatcher.emails[0].Link != resp.Link {
		t.Error("邮件中的链接应与返回一致")
	}

	token := tokenFromLink(t, resp.Link)
	if len(env.tokens.tokens) != 1 {
		t.Fatalf("应保存一条令牌，实际 %d", len(env.tokens.tokens))
	}
	for _, stored := range env.tokens.tokens {
		if stored.TokenHash == token {
			t.Error("不应明文保存令牌")
		}
		if stored.ExpiresAt.Sub(time.Now()) < 71*time.Hour {
			t.Errorf("有效期应约为 72 小时，实际到期 %v", stored.ExpiresAt)
		}
	}
}

func TestRescheduleLink_Send_FallbackWhenUndeliverable(t *testing.T) {
	svc, env := setupTestRescheduleLink()
	env.dispatcher.mailErr = errors.New("redis: connection pool timeout")

	resp, err := svc.Send(context.Background(), "a-1", "admin-1")
	if err != nil {
		t.Fatalf("邮件入队失败不应返回错误: %v", err)
	}
	if resp.Delivered || resp.Link == "" {
		t.Errorf("入队失败时应返回链接供人工发送，实际 %+v", resp)
	}

	// 客户没有邮箱
	p := env.projects.projects["p-1"]
	p.ClientEmail = ""
	env.projects.projects["p-1"] = p
	env.dispatcher.mailErr = nil

	resp, err = svc.Send(context.Background(), "a-1", "admin-1")
	if err != nil {
		t.Fatalf("Send 应成功: %v", err)
	}
	if resp.Delivered {
		t.Error("客户没有邮箱时 Delivered 应为 false")
	}
	if len(env.dispatcher.emails) != 0 {
		t.Error("没有邮箱时不应投递")
	}
}

func TestRescheduleLink_Send_ClosedAppointment(t *testing.T) {
	svc, env := setupTestRescheduleLink()
	a := env.appts.appts["a-1"]
	a.Status = "completed"
	env.appts.appts["a-1"] = a

	if _, err := svc.Send(context.Background(), "a-1", "admin-1"); !errors.Is(err, ErrAppointmentClosed) {
		t.Errorf("期望 ErrAppointmentClosed，实际: %v", err)
	}
	if _, err := svc.Send(context.Background(), "ghost", "admin-1"); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("期望 ErrAppointmentNotFound，实际: %v", err)
	}
}

// ── Verify ──

func TestRescheduleLink_Verify(t *testing.T) {
	svc, _ := setupTestRescheduleLink()
	ctx := context.Background()

	sent, err := svc.Send(ctx, "a-1", "admin-1")
	if err != nil {
		t.Fatalf("Send 应成功: %v", err)
	}
	token := tokenFromLink(t, sent.Link)

	resp, err := svc.Verify(ctx, "a-1", &dto.VerifyRescheduleLinkRequest{Token: token})
	if err != nil {
		t.Fatalf("Verify 应成功: %v", err)
	}
	if !resp.Valid || resp.ScheduledDate != "2025-03-17" || resp.ScheduledTime != "10:00" {
		t.Errorf("校验结果不正确: %+v", resp)
	}

	if _, err := svc.Verify(ctx, "a-1", &dto.VerifyRescheduleLinkRequest{Token: "forged"}); !errors.Is(err, ErrRescheduleLinkInvalid) {
		t.Errorf("伪造令牌期望 ErrRescheduleLinkInvalid，实际: %v", err)
	}
	if _, err := svc.Verify(ctx, "ghost", &dto.VerifyRescheduleLinkRequest{Token: token}); !errors.Is(err, ErrRescheduleLinkInvalid) {
		t.Errorf("预约不存在也应返回 ErrRescheduleLinkInvalid，实际: %v", err)
	}
}

func TestRescheduleLink_Verify_Expired(t *testing.T) {
	svc, _ := setupTestRescheduleLink()
	ctx := context.Background()

	sent, err := svc.Send(ctx, "a-1", "admin-1")
	if err != nil {
		t.Fatalf("Send 应成功: %v", err)
	}
	svc.now = func() time.Time { return time.Now().Add(73 * time.Hour) }

	_, err = svc.Verify(ctx, "a-1", &dto.VerifyRescheduleLinkRequest{Token: tokenFromLink(t, sent.Link)})
	if !errors.Is(err, ErrRescheduleLinkInvalid) {
		t.Errorf("过期令牌期望 ErrRescheduleLinkInvalid，实际: %v", err)
	}
}

// ── Redeem ──

func TestRescheduleLink_Redeem(t *testing.T) {
	svc, env := setupTestRescheduleLink()
	ctx := context.Background()

	sent, err := svc.Send(ctx, "a-1", "admin-1")
	if err != nil {
		t.Fatalf("Send 应成功: %v", err)
	}
	token := tokenFromLink(t, sent.Link)

	// 客户改到周二，原技术员当天空闲时可以继续上门
	resp, err := svc.Redeem(ctx, "a-1", &dto.RedeemRescheduleLinkRequest{Token: token, Date: "2025-03-18", Time: "14:00"})
	if err != nil {
		t.Fatalf("Redeem 应成功: %v", err)
	}
	if resp.Outcome != dto.OutcomeReassigned || resp.TechnicianID != "T1" {
		t.Errorf("期望仍由 T1 上门，实际 %+v", resp)
	}
	appt := env.appts.appts["a-1"]
	if formatDBDate(appt.ScheduledDate) != "2025-03-18" || appt.ScheduledTime != "14:00" {
		t.Errorf("预约应改到 2025-03-18 14:00，实际 %s %s", formatDBDate(appt.ScheduledDate), appt.ScheduledTime)
	}

	entries := env.timeline.forProject("p-1")
	if len(entries) != 1 || !strings.Contains(string(entries[0].Details), TriggerClient) {
		t.Errorf("时间线应记录客户改期来源，实际 %+v", entries)
	}

	// 令牌只能使用一次
	_, err = svc.Redeem(ctx, "a-1", &dto.RedeemRescheduleLinkRequest{Token: token, Date: "2025-03-19", Time: "14:00"})
	if !errors.Is(err, ErrRescheduleLinkInvalid) {
		t.Errorf("重复使用期望 ErrRescheduleLinkInvalid，实际: %v", err)
	}
}

func TestRescheduleLink_Redeem_InvalidSlot(t *testing.T) {
	svc, env := setupTestRescheduleLink()

	_, err := svc.Redeem(context.Background(), "a-1", &dto.RedeemRescheduleLinkRequest{Token: "x", Date: "2025-13-01", Time: "14:00"})
	if !errors.Is(err, ErrInvalidSlot) {
		t.Errorf("期望 ErrInvalidSlot，实际: %v", err)
	}
	if len(env.tokens.tokens) != 0 {
		t.Error("不应产生令牌")
	}
}
