package database

// Reward schedule constants.
const (
	BlockIntervalSecs        uint64 = 600
	FirstBlockTimestampNs    uint64 = 1704063600 * 1_000_000_000
	RewardHalvingAfterBlocks uint64 = 210_000
	initialRewardPerBlock           = 50 * TokenDecimalsDiv
)

// RewardPerBlock returns the reward distributed per block interval at the
// given time. The reward halves every RewardHalvingAfterBlocks intervals.
func RewardPerBlock(nowNs uint64) uint64 {
	var elapsedSecs uint64
	if nowNs > FirstBlockTimestampNs {
		elapsedSecs = (nowNs - FirstBlockTimestampNs) / 1_000_000_000
	}

	halvings := elapsedSecs / BlockIntervalSecs / RewardHalvingAfterBlocks
	if halvings >= 64 {
		return 0
	}

	return initialRewardPerBlock >> halvings
}

// RegistrationFee is the fee for registering a provider or a user.
func RegistrationFee(nowNs uint64) uint64 {
	return RewardPerBlock(nowNs) / 100
}

// UpdateFee is the fee for updating a provider profile or offering.
func UpdateFee(nowNs uint64) uint64 {
	return RewardPerBlock(nowNs) / 10_000
}
