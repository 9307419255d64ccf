package progression

// RolePlan is the role mutation needed to make a member hold exactly the
// level-role they earned: the highest configured role whose required level is
// met, and none of the others.
type RolePlan struct {
	Add    string
	Remove []string
}

// PlanRoles computes the plan for a member at the given level. configured maps
// required level to role ID; held is the member's current role set. The target
// is the single highest-threshold role with required level <= level; every
// other configured role currently held is removed, so level-roles never stack.
func PlanRoles(configured map[int]string, level int, held []string) RolePlan {
	target := ""
	targetLevel := 0
	for required, roleID := range configured {
		if required <= 0 || roleID == "" {
			continue
		}
		if required <= level && required > targetLevel {
			target = roleID
			targetLevel = required
		}
	}

	heldSet := make(map[string]struct{}, len(held))
	for _, roleID := range held {
		heldSet[roleID] = struct{}{}
	}

	plan := RolePlan{}
	for _, roleID := range configured {
		if roleID == "" || roleID == target {
			continue
		}
		if _, ok := heldSet[roleID]; ok {
			plan.Remove = append(plan.Remove, roleID)
		}
	}
	if target != "" {
		if _, ok := heldSet[target]; !ok {
			plan.Add = target
		}
	}
	return plan
}
