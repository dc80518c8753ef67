package worker

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/linemk/kronor-shop/internal/domain/models"
)

//go:embed templates/*
var templatesFS embed.FS

var (
	textTemplate = texttemplate.Must(texttemplate.ParseFS(templatesFS, "templates/order_confirmation.txt"))
	htmlTemplate = htmltemplate.Must(htmltemplate.ParseFS(templatesFS, "templates/order_confirmation.html"))
)

// Email: отрендеренное письмо-подтверждение.
type Email struct {
	Subject string
	Text    string
	HTML    string
}

type emailView struct {
	Name    string
	OrderID int64
	Items   []itemView
	Total   string
	Team    string
}

// все суммы уже отформатированы с двумя знаками
type itemView struct {
	Name     string
	Thumb    string
	Price    string
	Quantity int
	Total    string
}

// Renderer превращает сводку заказа в текстовую и HTML-версию письма.
type Renderer struct {
	team string
}

func NewRenderer(team string) *Renderer {
	return &Renderer{team: team}
}

func Subject(orderID int64) string {
	return fmt.Sprintf("Your Order Confirmation - Order #%d", orderID)
}

func (r *Renderer) Render(summary *models.OrderSummary) (Email, error) {
	view := emailView{
		Name:    summary.UserName,
		OrderID: summary.OrderID,
		Items:   make([]itemView, 0, len(summary.Items)),
		Total:   summary.TotalAmount.StringFixed(2),
		Team:    r.team,
	}
	for _, it := range summary.Items {
		view.Items = append(view.Items, itemView{
			Name:     it.Name,
			Thumb:    it.ThumbLink,
			Price:    it.Price.StringFixed(2),
			Quantity: it.Quantity,
			Total:    it.LineTotal().StringFixed(2),
		})
	}

	var text, html bytes.Buffer
	if err := textTemplate.Execute(&text, view); err != nil {
		return Email{}, fmt.Errorf("failed to render text body: %w", err)
	}
	if err := htmlTemplate.Execute(&html, view); err != nil {
		return Email{}, fmt.Errorf("failed to render html body: %w", err)
	}

	return Email{
		Subject: Subject(summary.OrderID),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
