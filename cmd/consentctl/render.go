package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"consent-console/internal/application"
)

func renderPage(w io.Writer, p application.Page) error {
	fmt.Fprintf(w, "%s\n%s\n\n", p.Title, p.Description)
	if p.Error != nil {
		fmt.Fprintf(w, "%s\n", p.Error.Message)
	}
	if len(p.Rows) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range p.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ClientID, r.Label, r.LaunchURL)
	}
	return tw.Flush()
}

func renderDetails(w io.Writer, r application.Row) error {
	fmt.Fprintf(w, "%s\n", r.Label)
	d := r.Details
	if d == nil {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\n", d.ClientLabel, d.ClientID)
	if d.Description != "" {
		fmt.Fprintf(tw, "%s\t%s\n", d.DescriptionLabel, d.Description)
	}
	if d.URL != "" {
		fmt.Fprintf(tw, "%s\t%s\n", d.URLLabel, d.URL)
	}
	if c := d.Consent; c != nil {
		labels := make([]string, 0, len(c.Scopes))
		for _, s := range c.Scopes {
			labels = append(labels, s.Label)
		}
		fmt.Fprintf(tw, "%s\t%s\n", c.ScopesLabel, strings.Join(labels, ", "))
		if c.TermsOfService != "" {
			fmt.Fprintf(tw, "%s\t%s\n", c.TermsOfServiceLabel, c.TermsOfService)
		}
		if c.PrivacyPolicy != "" {
			fmt.Fprintf(tw, "%s\t%s\n", c.PrivacyPolicyLabel, c.PrivacyPolicy)
		}
		if c.LogoURI != "" {
			fmt.Fprintf(tw, "%s\t%s\n", c.LogoLabel, c.LogoURI)
		}
		if c.GrantedOn != "" {
			fmt.Fprintf(tw, "%s\t%s\n", c.GrantedOnLabel, c.GrantedOn)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if d.Removal != nil {
		fmt.Fprintf(w, "\n%s\n", d.Removal.Info)
	}
	return nil
}

// confirm shows the removal dialog and reads the answer. Anything but an
// explicit yes cancels.
func confirm(in *bufio.Reader, out io.Writer, c application.Confirmation) (bool, error) {
	fmt.Fprintf(out, "%s\n%s\n%s [y/N] (%s/%s): ", c.Title, c.Message, c.ContinueLabel, strings.ToLower(c.ContinueLabel), strings.ToLower(c.CancelLabel))
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", strings.ToLower(c.ContinueLabel):
		return true, nil
	default:
		return false, nil
	}
}
