package main

import (
	"encoding/json"
	"fmt"
	"time"

	"connect-gateway/internal/catalog"
	"connect-gateway/internal/policy"

	"github.com/spf13/cobra"
)

func newValidateTemplateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "validate-template <body>",
		Short: "Check that a template body uses placeholders {{1}}..{{n}}",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := policy.ValidatePlaceholders(args[0])
			out := map[string]interface{}{
				"ok":           res.OK,
				"reason":       res.Reason,
				"count":        res.Count,
				"placeholders": policy.Placeholders(args[0]),
			}
			var nameErr error
			if name != "" {
				nameErr = policy.ValidateTemplateName(name)
				if nameErr != nil {
					out["name_error"] = nameErr.Error()
				}
			}
			if err := printJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if !res.OK {
				return fmt.Errorf("template rejected: %s", res.Reason)
			}
			return nameErr
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "template name to check as well")
	return cmd
}

func newQuietCmd() *cobra.Command {
	var start, end, tz, at string
	cmd := &cobra.Command{
		Use:   "quiet",
		Short: "Report whether an instant is in quiet hours and when a send would go out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := policy.LoadLocation(tz)
			if err != nil {
				return err
			}
			s, err := policy.ParseHour("start", start)
			if err != nil {
				return err
			}
			e, err := policy.ParseHour("end", end)
			if err != nil {
				return err
			}
			q, err := policy.NewQuietHours(s, e, loc)
			if err != nil {
				return err
			}

			when := time.Now()
			if at != "" {
				if when, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("--at: %w", err)
				}
			}
			scheduled := q.Shift(when)
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"window":         q.String(),
				"quiet":          q.IsQuiet(when),
				"requested_time": when.In(loc).Format(time.RFC3339),
				"scheduled_time": scheduled.Format(time.RFC3339),
				"shifted":        !scheduled.Equal(when),
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", policy.FormatHour(policy.DefaultQuietStart), "quiet hours start (HH:00)")
	cmd.Flags().StringVar(&end, "end", policy.FormatHour(policy.DefaultQuietEnd), "quiet hours end (HH:00)")
	cmd.Flags().StringVar(&tz, "tz", policy.DefaultTimezone, "IANA timezone")
	cmd.Flags().StringVar(&at, "at", "", "instant to evaluate (RFC3339, default now)")
	return cmd
}

func newMatchCmd() *cobra.Command {
	var rulesPath, channel, text string
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Find the keyword rule an inbound message triggers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readDocument(rulesPath)
			if err != nil {
				return err
			}
			rules, err := policy.ParseRuleSet(data)
			if err != nil {
				return err
			}
			ch, err := policy.ParseChannel(channel)
			if err != nil {
				return err
			}

			res := policy.Match(rules.Rules(ch), text, time.Now(), nil)
			out := map[string]interface{}{"outcome": res.Outcome.String(), "index": res.Index}
			if res.Outcome == policy.Fired {
				out["rule"] = res.Rule
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&rulesPath, "rules", "", "rule set file with customer_rules and ops_rules (JSON or YAML)")
	cmd.Flags().StringVar(&channel, "channel", string(policy.ChannelCustomer), "customer or ops")
	cmd.Flags().StringVar(&text, "text", "", "inbound message text")
	_ = cmd.MarkFlagRequired("rules")
	return cmd
}

type contactFile struct {
	ID      string   `json:"id"`
	Tags    []string `json:"tags"`
	Consent string   `json:"consent"`
}

func newAudienceCmd() *cobra.Command {
	var contactsPath, mode string
	var include, exclude []string
	cmd := &cobra.Command{
		Use:   "audience",
		Short: "Resolve campaign recipients from a contact list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readDocument(contactsPath)
			if err != nil {
				return err
			}
			var rows []contactFile
			if err := json.Unmarshal(data, &rows); err != nil {
				return fmt.Errorf("%s: %w", contactsPath, err)
			}
			contacts := make([]policy.Contact, 0, len(rows))
			for _, r := range rows {
				consent, err := policy.ParseConsent(r.Consent)
				if err != nil {
					return fmt.Errorf("contact %s: %w", r.ID, err)
				}
				contacts = append(contacts, policy.Contact{ID: r.ID, Tags: r.Tags, Consent: consent})
			}

			criteria, err := policy.NewAudienceCriteria(include, exclude, mode)
			if err != nil {
				return err
			}
			eligible, excluded := policy.Partition(contacts, criteria)

			recipients := make([]string, 0, len(eligible))
			for _, c := range eligible {
				recipients = append(recipients, c.ID)
			}
			reasons := make(map[string][]string)
			for _, x := range excluded {
				reasons[string(x.Reason)] = append(reasons[string(x.Reason)], x.Contact.ID)
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"mode":       criteria.Mode,
				"exclude":    criteria.EffectiveExclude(),
				"recipients": recipients,
				"excluded":   reasons,
			})
		},
	}
	cmd.Flags().StringVar(&contactsPath, "contacts", "", "contact list file (JSON or YAML)")
	cmd.Flags().StringSliceVar(&include, "include", nil, "tags to include")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "tags to exclude")
	cmd.Flags().StringVar(&mode, "mode", string(policy.MatchAny), "ANY or ALL")
	_ = cmd.MarkFlagRequired("contacts")
	return cmd
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets [id]",
		Short: "List the built-in rule packs, or print one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := catalog.Load()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return printJSON(cmd.OutOrStdout(), c.IDs())
			}
			p, ok := c.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown preset %q", args[0])
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
}
