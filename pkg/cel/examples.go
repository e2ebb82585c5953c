package cel

// GuardExpressionExamples lists guard expressions accepted on rules.
var GuardExpressionExamples = map[string]string{
	"status_is":          `table.status == "occupied"`,
	"long_session":       `session.duration > 7200000`,
	"large_party":        `table.capacity >= 6 && table.status == "reserved"`,
	"has_feature":        `"window" in table.features`,
	"order_unpaid":       `has(order.payment_status) && order.payment_status != "paid"`,
	"payment_threshold":  `has(event.payment_amount) && double(event.payment_amount) > 200.0`,
	"floor_and_section":  `table.location.floor == 2 && table.location.section == "terrace"`,
	"status_since":       `status.time_since_change > 900000`,
	"timer_for_rule":     `has(event.timer_rule_id) && event.timer_rule_id != ""`,
	"vip_or_large_table": `table.type == "vip" || table.capacity > 8`,
}
