// Package courseadvisor provides a Go client for the course advisor HTTP API.
//
// A client logs in under a role and then carries the session token on every
// call:
//
//	client, _ := courseadvisor.New("http://localhost:8080")
//	sess, _ := client.Login(ctx, courseadvisor.RoleUser, "sam", "s3cret")
//	ans, _ := client.Ask(ctx, "Which courses lead to a data analyst role?")
//	if ans.Rejected {
//	    // the question asked for personal data and never reached the model
//	}
//
// Admin clients can replace the course index with a zip of spreadsheets:
//
//	f, _ := os.Open("courses.zip")
//	sum, _ := client.Ingest(ctx, "courses.zip", f)
//
// Errors returned by the API carry a machine-readable code and match the
// package sentinels through errors.Is.
package courseadvisor
