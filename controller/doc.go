// Package controller exposes the member and team lookups over gin.
//
// Routes:
//
//	GET /members/:id    username of the member, text/plain
//	GET /members2/:id   the same, with the member resolved by middleware
//	GET /members        page of MemberDto, ?page=&size=&sort=prop,asc|desc
//	GET /teams/:id      team name
//	GET /health         database health
//	GET /metrics        prometheus exposition
package controller
