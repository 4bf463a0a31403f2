// Package backend provides the IdeaHub API server.

// This package contains the main application entry point. The actual API
// documentation is organized into subpackages:

// - internal/handlers: HTTP request handlers for all API endpoints
// - internal/models: Data models and database schemas
// - internal/auth: Authentication and authorization services
// - internal/review: Asynchronous AI review jobs and the polling worker
// - internal/leaderboard: Tag-scoped voting and rankings
// - internal/tags: Tag normalization and canonical keys
// - internal/database: Database connection and migrations
// - internal/cache: Redis client for coordination state
// - internal/middleware: HTTP middleware (request IDs, logging, metrics)
// - internal/seed: Development data seeding

// See the individual package documentation for detailed API reference.
package backend
