package crowd

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mturk/types"

	"marketprice/internal/model"
)

// questionFormAnswers is the XML envelope MTurk wraps worker answers
// in.
type questionFormAnswers struct {
	XMLName xml.Name `xml:"QuestionFormAnswers"`
	Answers []struct {
		QuestionIdentifier string `xml:"QuestionIdentifier"`
		FreeText           string `xml:"FreeText"`
	} `xml:"Answer"`
}

// parseAnswerXML flattens the answer envelope into a question-name to
// free-text map.
func parseAnswerXML(payload string) (map[string]string, error) {
	var form questionFormAnswers
	if err := xml.Unmarshal([]byte(payload), &form); err != nil {
		return nil, fmt.Errorf("crowd: parse answer XML: %w", err)
	}

	answers := make(map[string]string, len(form.Answers))
	for _, a := range form.Answers {
		answers[a.QuestionIdentifier] = strings.TrimSpace(a.FreeText)
	}
	return answers, nil
}

// buildReport converts one MTurk assignment into a RawReport, parsing
// the free-text price, currency and quantity answers.
func buildReport(a types.Assignment) (*model.RawReport, error) {
	reportID := aws.ToString(a.AssignmentId)

	answers, err := parseAnswerXML(aws.ToString(a.Answer))
	if err != nil {
		return nil, err
	}

	inStock := answers["in-stock.in-stock"] == "true"
	quantity := ParseQuantity(answers["quantity"])

	var rawPrice *string
	if p, ok := answers["price"]; ok {
		rawPrice = &p
	}
	priceCents, currency, err := ParsePriceCurrency(rawPrice, inStock, reportID)
	if err != nil {
		return nil, err
	}

	report := &model.RawReport{
		ReportID:   reportID,
		TaskID:     aws.ToString(a.HITId),
		AcceptTime: toUTC(a.AcceptTime),
		SubmitTime: toUTC(a.SubmitTime),
		InStock:    inStock,
		PriceCents: priceCents,
		Currency:   currency,
		Quantity:   quantity,
	}
	return report, nil
}

func toUTC(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
