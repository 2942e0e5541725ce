package leveling

// RewardsUpTo returns the rewards with Level <= level, keeping catalog order.
func RewardsUpTo(catalog []Reward, level int64) []Reward {
	out := make([]Reward, 0, len(catalog))
	for _, r := range catalog {
		if r.Level <= level {
			out = append(out, r)
		}
	}
	return out
}

// RewardsAt returns the rewards granted exactly at level.
func RewardsAt(catalog []Reward, level int64) []Reward {
	out := make([]Reward, 0)
	for _, r := range catalog {
		if r.Level == level {
			out = append(out, r)
		}
	}
	return out
}

// ResolveRoles computes the complete role set a member should hold after
// reaching a level. The caller replaces the member's roles with the result.
//
// The target set is the union of
//   - every non-clean reward in upToLevel,
//   - every reward in earned, clean or not,
//   - every role in current that is neither managed nor a reward role of
//     the guild (tracked).
//
// Clean rewards below the reached level are absent from the result and so
// are removed by the replacement. Managed roles never appear in the result.
func ResolveRoles(upToLevel, earned []Reward, current []MemberRole, tracked []Reward) []string {
	rewardRoles := make(map[string]struct{}, len(tracked)+len(upToLevel))
	for _, r := range tracked {
		rewardRoles[r.RoleID] = struct{}{}
	}
	for _, r := range upToLevel {
		rewardRoles[r.RoleID] = struct{}{}
	}

	seen := make(map[string]struct{})
	target := make([]string, 0, len(upToLevel)+len(current))
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		target = append(target, id)
	}

	for _, r := range upToLevel {
		if !r.Clean {
			add(r.RoleID)
		}
	}
	for _, r := range earned {
		add(r.RoleID)
	}
	for _, role := range current {
		if role.Managed {
			continue
		}
		if _, isReward := rewardRoles[role.ID]; isReward {
			continue
		}
		add(role.ID)
	}
	return target
}
