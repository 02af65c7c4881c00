package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"fieldops/backend/config"
)

// ErrNotConfigured 未配置 SMTP 主机
var ErrNotConfigured = errors.New("邮件服务未配置")

// Message 一封纯文本邮件
type Message struct {
	To      string
	Subject string
	Body    string
}

type sendFunc func(ctx context.Context, msg *gomail.Msg) error

// Mailer SMTP 发信
type Mailer struct {
	cfg    *config.MailConfig
	send   sendFunc
	logger *zap.Logger
	now    func() time.Time
}

// New 创建 Mailer
func New(cfg *config.MailConfig, logger *zap.Logger) *Mailer {
	m := &Mailer{cfg: cfg, logger: logger, now: time.Now}
	m.send = m.dialAndSend
	return m
}

// Send 发送邮件；ctx 已取消时直接返回
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if m.cfg.SMTPHost == "" {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return errors.New("收件人不能为空")
	}

	built, err := m.compose(msg)
	if err != nil {
		return err
	}
	if err := m.send(ctx, built); err != nil {
		return fmt.Errorf("SMTP 发送失败: %w", err)
	}

	m.logger.Info("邮件已发送", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

// compose 地址按 RFC 5322 解析，主题与正文由 go-mail 编码
func (m *Mailer) compose(msg Message) (*gomail.Msg, error) {
	out := gomail.NewMsg(gomail.WithEncoding(gomail.EncodingB64), gomail.WithNoDefaultUserAgent())
	if err := out.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("发件人地址无效: %w", err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("收件人地址无效: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetDateWithValue(m.now())
	out.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return out, nil
}

func (m *Mailer) dialAndSend(ctx context.Context, msg *gomail.Msg) error {
	opts := []gomail.Option{
		gomail.WithPort(m.cfg.SMTPPort),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.cfg.Username),
			gomail.WithPassword(m.cfg.Password),
		)
	}
	client, err := gomail.NewClient(m.cfg.SMTPHost, opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}

// RescheduleBody 客户改期邮件正文
func RescheduleBody(clientName, projectName, link string, expiresAt time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s 您好：\n\n", clientName)
	fmt.Fprintf(&b, "您的项目「%s」的上门安装需要重新安排时间。\n", projectName)
	b.WriteString("请通过以下链接选择新的上门时间：\n\n")
	b.WriteString(link + "\n\n")
	fmt.Fprintf(&b, "链接有效期至 %s（UTC），仅可使用一次。\n", expiresAt.UTC().Format("2006-01-02 15:04"))
	return b.String()
}
