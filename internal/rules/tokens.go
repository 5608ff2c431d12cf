package rules

// MaxSpellTokens is the cap on tokens a caster can hold at once.
const MaxSpellTokens uint8 = 6

// GainTokens returns the token count after gaining tokens, capped at
// MaxSpellTokens.
func GainTokens(current, gain uint8) uint8 {
	total := uint16(current) + uint16(gain)
	if total > uint16(MaxSpellTokens) {
		return MaxSpellTokens
	}
	return uint8(total)
}

// SpendTokens returns the token count after spending cost tokens. ok is
// false when the caster does not hold enough tokens; the count is then
// returned unchanged.
func SpendTokens(current, cost uint8) (remaining uint8, ok bool) {
	if cost > current {
		return current, false
	}
	return current - cost, true
}
