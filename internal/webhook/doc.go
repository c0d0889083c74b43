// Package webhook turns signed HTTP POSTs into grid commands.
//
// Each configured endpoint maps one path onto one command, for example
// POST /hooks/deploy -> row/update. The request body must be JSON and
// becomes the command payload. Every request carries an HMAC-SHA256 of its
// body in the endpoint's signature header, either as plain hex or in the
// "sha256=<hex>" form GitHub sends.
//
//	webhooks:
//	  listen: "127.0.0.1:8081"
//	  endpoints:
//	    - path: /hooks/deploy
//	      command: row/update
//	      target: 4f1c...        # or ?target= on the request
//	      secret: ${DEPLOY_HOOK_SECRET}
//	      signature_header: X-Hub-Signature-256
//	      max_body_size: 64KB
//
// Responses:
//
//   - 200 with the dispatch outcome, including blocked or unhandled
//   - 400 when the body is not JSON or no target is known
//   - 403 for a missing or wrong signature, with no detail
//   - 404 for an unknown path
//   - 413 when the body exceeds max_body_size
package webhook
