// Package policy screens leads with Open Policy Agent (Rego) rules before
// the first email is sent.
//
// # Overview
//
// Every policy is a Rego module that defines a deny set in its own package.
// Engine evaluates all loaded policies against one lead and implements
// engine.Screener: any violation with error or critical severity denies the
// lead, and the violation messages become the reason the lead is SKIPPED.
//
// # Input
//
//	{
//	  "lead": {
//	    "email": "sam@acme.example",
//	    "domain": "acme.example",
//	    "local_part": "sam",
//	    "first_name": "Sam",
//	    "last_name": "Lee",
//	    "company": "Acme",
//	    "title": "CMO",
//	    "industry": "Retail"
//	  }
//	}
//
// The configured suppression list is available as data.suppress_domains.
//
// # Built-in Policies
//
//   - required-fields: first name and company must be present
//   - role-address: noreply, postmaster and similar mailboxes are never contacted
//   - suppressed-domain: domains in data.suppress_domains and their subdomains are never contacted
//
// # Custom Policies
//
// Extra .rego files are loaded from the configured paths. A policy is named
// after its file. Violations may be plain strings or objects with message and
// severity fields; a "# severity: warning" comment changes the default
// severity of the file, and warnings are logged without denying the lead.
//
//	package leadflow.custom.industry
//
//	import rego.v1
//
//	deny contains msg if {
//		lower(input.lead.industry) == "tobacco"
//		msg := "industry is excluded"
//	}
package policy
