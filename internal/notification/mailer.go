// Package notification delivers best-effort emails. Senders are invoked only
// after the triggering state change has committed; callers log failures and
// move on.
package notification

import (
	"fmt"
	"net/smtp"

	"github.com/domodwyer/mailyak/v3"

	"github.com/tixera/tixera-api/internal/domain"
)

type Mailer struct {
	addr string
	from string
	auth smtp.Auth
}

func NewMailer(host string, port int, from, username, password string) *Mailer {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	return &Mailer{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
		auth: auth,
	}
}

func (m *Mailer) TransactionApproved(user domain.User, txn domain.Transaction) error {
	mail := mailyak.New(m.addr, m.auth)
	mail.From(m.from)
	mail.To(user.Email)
	mail.Subject(fmt.Sprintf("Your tickets for transaction #%d are confirmed", txn.ID))
	mail.Plain().Set(fmt.Sprintf(
		"Hi %s,\n\nYour payment was approved and your tickets are confirmed.\nTransaction: #%d\nTotal paid: %d\n\nSee you at the event!\n",
		user.Name, txn.ID, txn.TotalPayable))

	return mail.Send()
}

func (m *Mailer) TransactionRejected(user domain.User, txn domain.Transaction) error {
	mail := mailyak.New(m.addr, m.auth)
	mail.From(m.from)
	mail.To(user.Email)
	mail.Subject(fmt.Sprintf("Transaction #%d was rejected", txn.ID))
	mail.Plain().Set(fmt.Sprintf(
		"Hi %s,\n\nUnfortunately the organizer rejected your payment for transaction #%d.\nYour seats were released and any points you used have been refunded.\n",
		user.Name, txn.ID))

	return mail.Send()
}
