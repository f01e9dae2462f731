// Package notifications delivers tampering verdicts to a remote webhook.
//
// The webhook receives a JSON body {"camera_id": ..., "tampering": true} for
// every positive verdict. Response status and body are logged and never acted
// upon: there are no retries, and a failed delivery never blocks the
// orchestrator. When request_link is empty a no-op implementation is returned.
//
// Workflow code depends only on the Service interface.
package notifications
