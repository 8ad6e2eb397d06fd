package infrastructure

import (
	"context"
	"fmt"
	"strings"

	"kzcasino/events"
	"kzcasino/models"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Discord color constants
const (
	ColorPrimary = 0x5865F2 // Discord blurple
	ColorSuccess = 0x57F287 // Green
	ColorDanger  = 0xED4245 // Red
	ColorWarning = 0xFEE75C // Yellow
)

// ChannelMessenger is the slice of *discordgo.Session the announcer needs
type ChannelMessenger interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordAnnouncer posts duel, loan and prediction outcomes to a channel
type DiscordAnnouncer struct {
	messenger ChannelMessenger
	channelID string
}

// NewDiscordAnnouncer creates a new announcer
func NewDiscordAnnouncer(messenger ChannelMessenger, channelID string) *DiscordAnnouncer {
	return &DiscordAnnouncer{messenger: messenger, channelID: channelID}
}

// Attach subscribes the announcer to the events it renders
func (a *DiscordAnnouncer) Attach(bus *events.Bus) {
	for _, eventType := range []events.EventType{
		events.EventTypeDuelResolved,
		events.EventTypeLoanStateChange,
		events.EventTypeLoanOverdue,
		events.EventTypePredictionResolved,
	} {
		bus.Subscribe(eventType, a.handle)
	}
}

func (a *DiscordAnnouncer) handle(ctx context.Context, event events.Event) {
	embed := a.buildEmbed(event)
	if embed == nil {
		return
	}

	if _, err := a.messenger.ChannelMessageSendEmbed(a.channelID, embed); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"channelID": a.channelID,
			"error":     err,
		}).Error("Failed to post announcement")
	}
}

// buildEmbed renders an event, or returns nil for events not worth announcing
func (a *DiscordAnnouncer) buildEmbed(event events.Event) *discordgo.MessageEmbed {
	switch e := event.(type) {
	case events.DuelResolvedEvent:
		return buildDuelEmbed(e)
	case events.LoanStateChangeEvent:
		return buildLoanEmbed(e)
	case events.LoanOverdueEvent:
		return buildOverdueEmbed(e)
	case events.PredictionResolvedEvent:
		return buildPredictionEmbed(e)
	}
	return nil
}

func buildDuelEmbed(e events.DuelResolvedEvent) *discordgo.MessageEmbed {
	title := fmt.Sprintf("⚔️ %s duel", strings.ToUpper(string(e.DuelType)))
	if e.AgainstHouse {
		title += " vs the house"
	}

	var description string
	color := ColorSuccess
	switch {
	case e.Tie:
		description = fmt.Sprintf("%s and %s tied. Both stakes were refunded.", mention(e.ChallengerID), mention(e.OpponentID))
		color = ColorWarning
	case e.WinnerID != nil:
		loser := e.ChallengerID
		if *e.WinnerID == e.ChallengerID {
			loser = e.OpponentID
		}
		description = fmt.Sprintf("%s beat %s and took **%s bits**", mention(*e.WinnerID), mention(loser), formatAmount(e.WinnerGain))
	}
	if e.TimedOut {
		description += "\n*Resolved by timeout*"
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Bet", Value: formatAmount(e.Bet) + " bits", Inline: true},
	}
	if e.Tax > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Tax", Value: formatAmount(e.Tax) + " bits", Inline: true})
	}

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Fields:      fields,
	}
}

func buildLoanEmbed(e events.LoanStateChangeEvent) *discordgo.MessageEmbed {
	lender := "the bank"
	if e.LenderID != nil {
		lender = mention(*e.LenderID)
	}

	var description string
	color := ColorPrimary
	switch {
	case e.OldStatus == e.NewStatus:
		description = fmt.Sprintf("%s paid towards their loan, **%s bits** left", mention(e.BorrowerID), formatAmount(e.RemainingDue))
	case e.NewStatus == models.LoanStatusPending:
		description = fmt.Sprintf("%s asked %s for **%s bits**", mention(e.BorrowerID), lender, formatAmount(e.Principal))
	case e.NewStatus == models.LoanStatusActive:
		description = fmt.Sprintf("%s lent **%s bits** to %s. **%s bits** due.", lender, formatAmount(e.Principal), mention(e.BorrowerID), formatAmount(e.RemainingDue))
		color = ColorSuccess
	case e.NewStatus == models.LoanStatusRejected:
		description = fmt.Sprintf("The loan request of %s was refused", mention(e.BorrowerID))
		color = ColorDanger
	case e.NewStatus == models.LoanStatusCancelled:
		description = fmt.Sprintf("The loan request of %s was cancelled", mention(e.BorrowerID))
		color = ColorWarning
	case e.NewStatus == models.LoanStatusRepaid:
		description = fmt.Sprintf("%s fully repaid %s", mention(e.BorrowerID), lender)
		color = ColorSuccess
	}
	if description == "" {
		return nil
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🏦 Loan #%d", e.LoanID),
		Description: description,
		Color:       color,
	}
}

func buildOverdueEmbed(e events.LoanOverdueEvent) *discordgo.MessageEmbed {
	days := "day"
	if e.DaysOverdue != 1 {
		days = "days"
	}
	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("⏰ Loan #%d is overdue", e.LoanID),
		Description: fmt.Sprintf("%s is %d %s late with **%s bits** outstanding",
			mention(e.BorrowerID), e.DaysOverdue, days, formatAmount(e.RemainingDue)),
		Color: ColorDanger,
	}
}

func buildPredictionEmbed(e events.PredictionResolvedEvent) *discordgo.MessageEmbed {
	if e.Correct {
		return &discordgo.MessageEmbed{
			Title: "🔮 Prediction paid out",
			Description: fmt.Sprintf("%s called the %s of %s and collected **%s bits** from them",
				mention(e.PredictorID), e.Result, mention(e.TargetID), formatAmount(e.PaidFromTarget)),
			Color: ColorSuccess,
		}
	}
	return &discordgo.MessageEmbed{
		Title: "🔮 Prediction lost",
		Description: fmt.Sprintf("%s bet on a %s from %s and lost **%s bits** to them",
			mention(e.PredictorID), e.Choice, mention(e.TargetID), formatAmount(e.Stake)),
		Color: ColorDanger,
	}
}

func mention(discordID int64) string {
	return fmt.Sprintf("<@%d>", discordID)
}

// formatAmount formats an amount with thousands separators
func formatAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	str := fmt.Sprintf("%d", amount)
	n := len(str)
	if n <= 3 {
		return sign + str
	}

	var result strings.Builder
	result.WriteString(sign)
	for i, digit := range str {
		if i > 0 && (n-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(digit)
	}

	return result.String()
}
