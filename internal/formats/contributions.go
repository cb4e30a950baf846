package formats

import (
	"time"

	"github.com/JonMunkholm/flatfile/internal/catalog"
	"github.com/JonMunkholm/flatfile/internal/store"
)

func init() {
	registerContributions()
}

// Contribution is one row of an FEC individual contributions export
// (P00000001-ALL.csv and friends). Fields are comma separated and quoted;
// the first line is a header.
type Contribution struct {
	_                struct{}  `fft:"delim=comma,skipfirst"`
	CommitteeID      string    `fft:"pos=1,required" json:"committeeId"`
	CandidateID      string    `fft:"pos=2" json:"candidateId"`
	CandidateName    string    `fft:"pos=3" json:"candidateName"`
	ContributorName  string    `fft:"pos=4" json:"contributorName"`
	ContributorCity  string    `fft:"pos=5" json:"contributorCity"`
	ContributorState State     `fft:"pos=6" json:"contributorState"`
	ContributorZip   string    `fft:"pos=7" json:"contributorZip"`
	Employer         string    `fft:"pos=8" json:"employer"`
	Occupation       string    `fft:"pos=9" json:"occupation"`
	Amount           string    `fft:"pos=10" json:"amount"`
	ReceivedOn       time.Time `fft:"pos=11,format=dd-MMM-yy" json:"receivedOn"`
	ReceiptDesc      string    `fft:"pos=12,skip" json:"-"`
	MemoCode         string    `fft:"pos=13,skip" json:"-"`
	MemoText         string    `fft:"pos=14" json:"memoText"`
}

func registerContributions() {
	catalog.Register(catalog.Define(
		catalog.Info{
			Key:         "contributions",
			Label:       "Campaign contributions",
			Description: "FEC individual contribution exports",
			Table:       "contributions",
		},
		[]string{
			"committee_id",
			"candidate_id",
			"candidate_name",
			"contributor_name",
			"contributor_city",
			"contributor_state",
			"contributor_zip",
			"employer",
			"occupation",
			"amount",
			"received_on",
			"memo_text",
		},
		func(c *Contribution) []any {
			return []any{
				store.ToPgText(c.CommitteeID),
				store.ToPgText(c.CandidateID),
				store.ToPgText(c.CandidateName),
				store.ToPgText(c.ContributorName),
				store.ToPgText(c.ContributorCity),
				store.ToPgText(string(c.ContributorState)),
				store.ToPgText(c.ContributorZip),
				store.ToPgText(c.Employer),
				store.ToPgText(c.Occupation),
				store.ToPgNumeric(c.Amount),
				store.ToPgDate(c.ReceivedOn),
				store.ToPgText(c.MemoText),
			}
		},
	))
}
