// Package mailer sends transactional mail. All sends are best-effort: a
// failure is the caller's to log, never to roll back an order over.
package mailer

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/gomail.v2"

	"github.com/leafpress/go-bookstore/internal/config"
	"github.com/leafpress/go-bookstore/internal/models"
)

type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func New(cfg config.SMTPConfig) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// SendOrderConfirmation mails the customer with the PDF invoice attached.
func (m *Mailer) SendOrderConfirmation(order *models.Order, customer *models.User, invoicePDF []byte) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", customer.Email)
	msg.SetHeader("Subject", fmt.Sprintf("Order confirmation %s", order.OrderNumber))

	body := fmt.Sprintf(
		"Hi %s,\n\nThanks for your order %s. We've received your payment of $%s and will ship it soon.\n\nYour invoice is attached.\n",
		customer.Name, order.OrderNumber, order.TotalAmount.StringFixed(2))
	msg.SetBody("text/plain", body)

	if len(invoicePDF) > 0 {
		filename := fmt.Sprintf("invoice-%s.pdf", order.OrderNumber)
		msg.Attach(filename,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := io.Copy(w, bytes.NewReader(invoicePDF))
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {"application/pdf"}}))
	}

	return m.dialer.DialAndSend(msg)
}

// SendOrderCancelled notifies the customer that their order was cancelled.
func (m *Mailer) SendOrderCancelled(order *models.Order, customer *models.User) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", customer.Email)
	msg.SetHeader("Subject", fmt.Sprintf("Order cancelled %s", order.OrderNumber))

	body := fmt.Sprintf(
		"Hi %s,\n\nYour order %s has been cancelled and any reserved stock released. If you paid for this order, the refund follows your payment provider's timeline.\n",
		customer.Name, order.OrderNumber)
	msg.SetBody("text/plain", body)

	return m.dialer.DialAndSend(msg)
}
