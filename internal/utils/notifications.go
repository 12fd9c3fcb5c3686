package utils

import (
	"fmt"
	"log"

	"github.com/wneessen/go-mail"

	"delivra_back_end/internal/config"
	"delivra_back_end/internal/models"
)

// EmailNotifier envoie les e-mails de cycle de vie de commande. Toujours
// appelé en fire-and-forget : un échec est journalisé, jamais remonté.
// Resolve traduit un user id en adresse e-mail (collaborateur annuaire) ;
// sans adresse, on se contente de tracer.
type EmailNotifier struct {
	cfg     *config.Config
	Resolve func(userID string) string
}

func NewEmailNotifier(cfg *config.Config) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, Resolve: func(string) string { return "" }}
}

func (n *EmailNotifier) OrderCreated(order models.Order) {
	n.send(order, "📋 Votre commande "+order.Number+" est enregistrée",
		"Nous avons bien reçu votre commande. Vous recevrez une confirmation dès validation du paiement.")
}

func (n *EmailNotifier) OrderStatusChanged(order models.Order, status models.OrderStatus) {
	n.send(order, statusEmailSubject(status), statusMessage(status))
}

func (n *EmailNotifier) send(order models.Order, subject, message string) {
	email := n.Resolve(order.UserID)
	if email == "" {
		log.Printf("🔔 Notification (sans e-mail): %s — commande %s", subject, order.Number)
		return
	}

	msg := mail.NewMsg()
	if err := msg.From(n.cfg.EmailFrom); err != nil {
		log.Printf("❌ Erreur expéditeur e-mail: %v", err)
		return
	}
	if err := msg.To(email); err != nil {
		log.Printf("❌ Destinataire e-mail invalide %s: %v", email, err)
		return
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, statusEmailHTML(order, message))

	client, err := mail.NewClient(n.cfg.SMTPHost,
		mail.WithPort(n.cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(n.cfg.SMTPUsername),
		mail.WithPassword(n.cfg.SMTPPassword),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		log.Printf("❌ Client SMTP: %v", err)
		return
	}

	if err := client.DialAndSend(msg); err != nil {
		log.Printf("❌ Erreur envoi e-mail à %s: %v", email, err)
		return
	}
	log.Println("📧 E-mail envoyé à", email)
}

func statusEmailSubject(status models.OrderStatus) string {
	switch status {
	case models.OrderConfirmed:
		return "✅ Paiement confirmé - Delivra"
	case models.OrderPreparing:
		return "👨‍🍳 Votre commande est en préparation - Delivra"
	case models.OrderOutForDelivery:
		return "🛵 Votre commande est en route - Delivra"
	case models.OrderDelivered:
		return "🎉 Votre commande a été livrée - Delivra"
	case models.OrderCancelled:
		return "❌ Commande annulée - Delivra"
	case models.OrderRefunded:
		return "💰 Remboursement effectué - Delivra"
	default:
		return "📋 Mise à jour de votre commande - Delivra"
	}
}

func statusMessage(status models.OrderStatus) string {
	switch status {
	case models.OrderConfirmed:
		return "Votre paiement a été confirmé avec succès. Nous préparons votre commande."
	case models.OrderPreparing:
		return "Votre commande est en cours de préparation."
	case models.OrderOutForDelivery:
		return "Bonne nouvelle ! Votre commande est en route vers vous."
	case models.OrderDelivered:
		return "Votre commande a été livrée avec succès. Bon appétit !"
	case models.OrderCancelled:
		return "Votre commande a été annulée. Si vous avez des questions, n'hésitez pas à nous contacter."
	case models.OrderRefunded:
		return "Votre remboursement a été traité. Les fonds seront crédités sur votre compte sous 5-10 jours ouvrés."
	default:
		return "Le statut de votre commande a été mis à jour."
	}
}

func statusEmailHTML(order models.Order, message string) string {
	itemsHTML := ""
	for _, item := range order.Items {
		itemsHTML += fmt.Sprintf(`
			<tr>
				<td>%s</td>
				<td>%d</td>
				<td>R$ %.2f</td>
				<td>R$ %.2f</td>
			</tr>`, item.ProductName, item.Quantity,
			float64(item.UnitPriceCents)/100, float64(item.TotalCents)/100)
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
	<h2>Commande %s</h2>
	<p>%s</p>
	<table width="100%%" cellpadding="8" style="border-collapse: collapse;">
		<tr style="background: #f5f5f5;">
			<th align="left">Produit</th><th>Qté</th><th>Prix</th><th>Total</th>
		</tr>
		%s
	</table>
	<p>Sous-total : R$ %.2f<br>
	Livraison : R$ %.2f<br>
	Réduction : -R$ %.2f<br>
	<strong>Total : R$ %.2f</strong></p>
	<p>Merci de votre confiance,<br>L'équipe Delivra</p>
</body>
</html>`,
		order.Number, message, itemsHTML,
		float64(order.SubtotalCents)/100,
		float64(order.DeliveryFeeCents)/100,
		float64(order.DiscountCents)/100,
		float64(order.TotalCents)/100)
}
