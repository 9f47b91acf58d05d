package removalreasons

import (
	"errors"
	"testing"
)

func TestBuildMessageConcatenatesFragmentsWithoutSeparator(t *testing.T) {
	message, err := BuildMessage(MessageRequest{
		Fragments: []string{
			"Rule 1 violation.<br>Details: {input}",
			"Please re-read the rules.",
		},
		CustomInputs:  []string{"spam"},
		Header:        "Header text",
		IncludeHeader: true,
	})
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	expected := "Header text\n\nRule 1 violation.\n\nDetails: spamPlease re-read the rules."
	if message.Body != expected {
		t.Fatalf("unexpected body:\nwant %q\ngot  %q", expected, message.Body)
	}
}

func TestBuildMessageFooterAndVariables(t *testing.T) {
	message, err := BuildMessage(MessageRequest{
		Fragments:     []string{"Your {kind} breaks rule 2."},
		Footer:        "Questions? Message the mods of {SUBREDDIT}.",
		IncludeFooter: true,
		Subject:       DefaultPMSubject,
		LogTitle:      DefaultLogTitle,
		Variables: Variables{
			Subreddit: "pics",
			Author:    "troublemaker",
			Kind:      "submission",
		},
	})
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	expectedBody := "Your submission breaks rule 2.\n\nQuestions? Message the mods of pics."
	if message.Body != expectedBody {
		t.Fatalf("unexpected body: %q", message.Body)
	}
	if message.Subject != "Your submission was removed from pics" {
		t.Fatalf("unexpected subject: %q", message.Subject)
	}
	if message.LogTitle != "Removed: submission by /u/troublemaker to /r/pics" {
		t.Fatalf("unexpected log title: %q", message.LogTitle)
	}
}

func TestBuildMessageSubstitutesBanTitle(t *testing.T) {
	message, err := BuildMessage(MessageRequest{
		Fragments: []string{"Spam."},
		BanTitle:  DefaultBanTitle,
		Variables: Variables{
			Subreddit: "pics",
			Author:    "troublemaker",
			Title:     "banned",
		},
	})
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	if message.BanTitle != "/u/troublemaker has been banned from /r/pics for {reason}" {
		t.Fatalf("unexpected ban title: %q", message.BanTitle)
	}
}

func TestBuildMessageConsumesCustomInputsInOrder(t *testing.T) {
	message, err := BuildMessage(MessageRequest{
		Fragments: []string{
			"First: <input type=\"text\">",
			"Second: <select><option>a</option><option>b</option></select> and <textarea>unused</textarea>",
		},
		CustomInputs: []string{"one", "two", "three"},
	})
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	expected := "First: oneSecond: two and three"
	if message.Body != expected {
		t.Fatalf("unexpected body: %q", message.Body)
	}
}

func TestBuildMessageNoReasonSelected(t *testing.T) {
	_, err := BuildMessage(MessageRequest{Header: "Header", IncludeHeader: true})
	if !errors.Is(err, ErrNoReasonSelected) {
		t.Fatalf("expected ErrNoReasonSelected, got %v", err)
	}
}

func TestBuildMessageDistinguishesEmptyMessage(t *testing.T) {
	_, err := BuildMessage(MessageRequest{Fragments: []string{"", "   "}})
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if errors.Is(err, ErrNoReasonSelected) {
		t.Fatalf("empty message must be distinct from no reason selected")
	}
}

func TestBuildMessageSubstitutionIsSinglePass(t *testing.T) {
	message, err := BuildMessage(MessageRequest{
		Fragments: []string{"Posted by {author}."},
		Variables: Variables{Author: "{subreddit}", Subreddit: "pics"},
	})
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	// The subreddit pass ran before the author pass introduced a
	// "{subreddit}" value, and substituted values are never re-scanned, so
	// the literal braces survive.
	if message.Body != "Posted by {subreddit}." {
		t.Fatalf("unexpected body: %q", message.Body)
	}
}

func TestSubstituteHelpers(t *testing.T) {
	if got := SubstituteLogLink("See {loglink} and {loglink}", "http://redd.it/x"); got != "See http://redd.it/x and {loglink}" {
		t.Fatalf("unexpected loglink substitution: %q", got)
	}
	if got := SubstituteReason("Removed for {reason}", "spam"); got != "Removed for spam" {
		t.Fatalf("unexpected reason substitution: %q", got)
	}
	if got := StripQuotes(`He said "no" twice`); got != "He said no twice" {
		t.Fatalf("unexpected quote stripping: %q", got)
	}
}
