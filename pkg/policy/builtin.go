package policy

// Built-in policy names.
const (
	RequiredFields   = "required-fields"
	RoleAddress      = "role-address"
	SuppressedDomain = "suppressed-domain"
)

// BuiltinNames lists the built-in policies in evaluation order.
var BuiltinNames = []string{RequiredFields, RoleAddress, SuppressedDomain}

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		requiredFieldsPolicy(),
		roleAddressPolicy(),
		suppressedDomainPolicy(),
	}
}

// requiredFieldsPolicy requires the fields the email templates address.
func requiredFieldsPolicy() Policy {
	return Policy{
		Name:        RequiredFields,
		Description: "Leads need a first name and a company before they are contacted",
		Severity:    SeverityError,
		Rego: `package leadflow.policies.required_fields

import rego.v1

deny contains violation if {
	trim_space(input.lead.first_name) == ""
	violation := {
		"message": "first name is required",
		"severity": "error",
	}
}

deny contains violation if {
	trim_space(input.lead.company) == ""
	violation := {
		"message": "company is required",
		"severity": "error",
	}
}
`,
	}
}

// roleAddressPolicy blocks shared and system mailboxes.
func roleAddressPolicy() Policy {
	return Policy{
		Name:        RoleAddress,
		Description: "Role mailboxes such as noreply or postmaster are never contacted",
		Severity:    SeverityError,
		Rego: `package leadflow.policies.role_address

import rego.v1

role_mailboxes := {"noreply", "no-reply", "donotreply", "postmaster", "mailer-daemon", "abuse"}

deny contains violation if {
	input.lead.local_part in role_mailboxes
	violation := {
		"message": sprintf("%s is a role mailbox", [input.lead.email]),
		"severity": "error",
	}
}
`,
	}
}

// suppressedDomainPolicy blocks domains listed in data.suppress_domains,
// including their subdomains.
func suppressedDomainPolicy() Policy {
	return Policy{
		Name:        SuppressedDomain,
		Description: "Domains on the suppression list are never contacted",
		Severity:    SeverityError,
		Rego: `package leadflow.policies.suppressed_domain

import rego.v1

suppressed(domain) if {
	some d in data.suppress_domains
	domain == lower(d)
}

suppressed(domain) if {
	some d in data.suppress_domains
	endswith(domain, concat("", [".", lower(d)]))
}

deny contains violation if {
	suppressed(lower(input.lead.domain))
	violation := {
		"message": sprintf("domain %s is suppressed", [input.lead.domain]),
		"severity": "error",
	}
}
`,
	}
}
