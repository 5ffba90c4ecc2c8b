package crowd

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mturk/types"
)

const sampleAnswerXML = `<?xml version="1.0" encoding="UTF-8"?>
<QuestionFormAnswers xmlns="http://mechanicalturk.amazonaws.com/AWSMechanicalTurkDataSchemas/2005-10-01/QuestionFormAnswers.xsd">
  <Answer>
    <QuestionIdentifier>in-stock.in-stock</QuestionIdentifier>
    <FreeText>true</FreeText>
  </Answer>
  <Answer>
    <QuestionIdentifier>price</QuestionIdentifier>
    <FreeText> $12.99 </FreeText>
  </Answer>
  <Answer>
    <QuestionIdentifier>quantity</QuestionIdentifier>
    <FreeText>25</FreeText>
  </Answer>
</QuestionFormAnswers>`

func TestParseAnswerXML(t *testing.T) {
	answers, err := parseAnswerXML(sampleAnswerXML)
	if err != nil {
		t.Fatalf("parseAnswerXML() error = %v", err)
	}

	want := map[string]string{
		"in-stock.in-stock": "true",
		"price":             "$12.99",
		"quantity":          "25",
	}
	for k, v := range want {
		if answers[k] != v {
			t.Errorf("answers[%q] = %q, want %q", k, answers[k], v)
		}
	}
}

func TestParseAnswerXMLMalformed(t *testing.T) {
	if _, err := parseAnswerXML("not xml at all"); err == nil {
		t.Error("parseAnswerXML() error = nil, want error")
	}
}

func TestBuildReport(t *testing.T) {
	accept := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	submit := accept.Add(3 * time.Minute)

	report, err := buildReport(types.Assignment{
		AssignmentId: aws.String("A1"),
		HITId:        aws.String("T1"),
		Answer:       aws.String(sampleAnswerXML),
		AcceptTime:   &accept,
		SubmitTime:   &submit,
	})
	if err != nil {
		t.Fatalf("buildReport() error = %v", err)
	}

	if report.ReportID != "A1" || report.TaskID != "T1" {
		t.Errorf("ids = (%q, %q), want (A1, T1)", report.ReportID, report.TaskID)
	}
	if !report.InStock {
		t.Error("InStock = false, want true")
	}
	if report.PriceCents == nil || *report.PriceCents != 1299 {
		t.Errorf("PriceCents = %v, want 1299", report.PriceCents)
	}
	if report.Currency == nil || *report.Currency != "$" {
		t.Errorf("Currency = %v, want $", report.Currency)
	}
	if report.Quantity == nil || *report.Quantity != 25 {
		t.Errorf("Quantity = %v, want 25", report.Quantity)
	}
	if !report.AcceptTime.Equal(accept) || !report.SubmitTime.Equal(submit) {
		t.Errorf("times = (%v, %v), want (%v, %v)",
			report.AcceptTime, report.SubmitTime, accept, submit)
	}
}

func TestBuildReportOutOfStock(t *testing.T) {
	xml := `<QuestionFormAnswers>
  <Answer><QuestionIdentifier>in-stock.in-stock</QuestionIdentifier><FreeText>false</FreeText></Answer>
</QuestionFormAnswers>`

	report, err := buildReport(types.Assignment{
		AssignmentId: aws.String("A2"),
		HITId:        aws.String("T1"),
		Answer:       aws.String(xml),
	})
	if err != nil {
		t.Fatalf("buildReport() error = %v", err)
	}
	if report.InStock {
		t.Error("InStock = true, want false")
	}
	if report.PriceCents != nil || report.Currency != nil || report.Quantity != nil {
		t.Errorf("expected nil answers, got price=%v currency=%v quantity=%v",
			report.PriceCents, report.Currency, report.Quantity)
	}
}
