package domain

import "strings"

// Disclose decides what identity a ballot exposes on the results roster. It
// returns false when nothing at all may be shown. The outcome depends only on
// the data, never on who is asking.
func Disclose(mode VoteMode, disclosure Disclosure, m *Member) (RosterEntry, bool) {
	if mode != VoteModePublic {
		return RosterEntry{}, false
	}
	if disclosure == DisclosureNamed {
		return RosterEntry{
			DisplayName: m.DisplayName(),
			Email:       MaskEmail(m.Email),
		}, true
	}
	return RosterEntry{Nickname: m.Nickname}, true
}

// MaskEmail keeps the first character of the local part and the whole domain.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	local, host := email[:at], email[at+1:]
	return string([]rune(local)[:1]) + "***@" + host
}
