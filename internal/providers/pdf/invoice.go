package pdf

import (
	"context"
	"errors"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// StatementData holds pre-formatted strings; the renderer does no arithmetic.
type StatementData struct {
	BuildingName    string
	StatementNumber string
	Period          string
	IssueDate       string
	DueDate         string
	Status          string

	ApartmentLabel string

	Items []StatementItem

	Total       string
	Paid        string
	Outstanding string
}

type StatementItem struct {
	Description string
	Quantity    string
	UnitPrice   string
	Amount      string
	Details     []string
}

var ErrEmptyStatement = errors.New("statement has no items")

type PDFProvider struct{}

func New() StatementRenderer {
	return &PDFProvider{}
}

func (p *PDFProvider) RenderStatement(ctx context.Context, data StatementData) ([]byte, error) {
	if len(data.Items) == 0 {
		return nil, ErrEmptyStatement
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(8, "Invoice statement", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, data.Status, props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Statement: "+data.StatementNumber, props.Text{Top: 0}),
			text.New("Billing period: "+data.Period, props.Text{Top: 5}),
			text.New("Issued: "+data.IssueDate, props.Text{Top: 10}),
			text.New("Due: "+data.DueDate, props.Text{Top: 15}),
		),
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(data.ApartmentLabel, props.Text{Top: 5, Align: align.Right}),
			text.New(data.BuildingName, props.Text{Top: 10, Align: align.Right}),
		),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))

	for _, item := range data.Items {
		m.AddRow(8,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(2, item.Quantity, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
		for _, detail := range item.Details {
			m.AddRow(5,
				text.NewCol(12, "   "+detail, props.Text{Size: 7, Style: fontstyle.Italic}),
			)
		}
	}

	m.AddRow(2, line.NewCol(12))
	m.AddRow(8,
		col.New(7),
		text.NewCol(2, "Total", props.Text{Size: 9}),
		text.NewCol(3, data.Total, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(7),
		text.NewCol(2, "Paid", props.Text{Size: 9}),
		text.NewCol(3, data.Paid, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(7),
		text.NewCol(2, "Amount due", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, data.Outstanding, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
