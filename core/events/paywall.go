package events

const (
	NamePaywallTrigger Name = "paywall_trigger"
	NameConversion     Name = "conversion"
	NamePaywallDismiss Name = "paywall_dismiss"
)

type PaywallTrigger struct{ Base }

func NewPaywallTrigger(feature, currentPlan string) PaywallTrigger {
	return PaywallTrigger{Base: NewBase(NamePaywallTrigger, Payload{"feature": feature, "current_plan": currentPlan})}
}

type Conversion struct{ Base }

func NewConversion(plan, trigger string) Conversion {
	return Conversion{Base: NewBase(NameConversion, Payload{"plan": plan, "trigger": trigger})}
}

type PaywallDismiss struct{ Base }

func NewPaywallDismiss(trigger string) PaywallDismiss {
	return PaywallDismiss{Base: NewBase(NamePaywallDismiss, Payload{"trigger": trigger})}
}
